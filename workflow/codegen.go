package workflow

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/config"
	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// Code generation renders the tenant's rule components in sequence. Counter
// state lives in its own row per scope so generation from concurrent requests
// serializes on a short row lock, not on the document tables.

const defaultRandomCharset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// ScopeKey derives the counter partition from the reset rule. Resetting
// counters never delete state, a new scope key simply starts a fresh row.
func ScopeKey(scope models.CounterReset, now time.Time) string {
	switch scope {
	case models.CounterResetDaily:
		return now.Format("20060102")
	case models.CounterResetMonthly:
		return now.Format("200601")
	case models.CounterResetYearly:
		return now.Format("2006")
	}
	return ""
}

// RenderDate translates the rule's date tokens to the generation time.
// Supported tokens are yyyy, yy, MM, dd, HH, mm, ss.
func RenderDate(format string, now time.Time) string {
	replacer := strings.NewReplacer(
		"yyyy", now.Format("2006"),
		"yy", now.Format("06"),
		"MM", now.Format("01"),
		"dd", now.Format("02"),
		"HH", now.Format("15"),
		"mm", now.Format("04"),
		"ss", now.Format("05"),
	)
	return replacer.Replace(format)
}

// RenderComponents is the pure rendering core. Counter and random values come
// through the callbacks so callers control allocation and tests control
// determinism.
func RenderComponents(
	components []models.CodeRuleComponent,
	now time.Time,
	fields map[string]string,
	nextCounter func(component models.CodeRuleComponent) (int64, error),
	randomString func(charset string, length int) (string, error),
) (string, error) {
	var sb strings.Builder
	for _, component := range components {
		switch component.Kind {
		case models.CodeComponentLiteral:
			sb.WriteString(component.Literal)
		case models.CodeComponentDate:
			sb.WriteString(RenderDate(component.DateFormat, now))
		case models.CodeComponentField:
			value, ok := fields[component.FieldName]
			if !ok || value == "" {
				return "", utils.NewConfigError("code rule references missing field " + component.FieldName)
			}
			sb.WriteString(value)
		case models.CodeComponentCounter:
			value, err := nextCounter(component)
			if err != nil {
				return "", err
			}
			sb.WriteString(fmt.Sprintf("%0*d", component.CounterWidth, value))
		case models.CodeComponentRandom:
			charset := component.RandomCharset
			if charset == "" {
				charset = defaultRandomCharset
			}
			value, err := randomString(charset, component.RandomLength)
			if err != nil {
				return "", err
			}
			sb.WriteString(value)
		default:
			return "", utils.NewConfigError("unknown code component kind " + string(component.Kind))
		}
	}
	return sb.String(), nil
}

func randomFromCharset(charset string, length int) (string, error) {
	runes := []rune(charset)
	var sb strings.Builder
	for i := 0; i < length; i++ {
		idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(runes))))
		if err != nil {
			return "", err
		}
		sb.WriteRune(runes[idx.Int64()])
	}
	return sb.String(), nil
}

// allocateCounter bumps the scoped counter in a short standalone transaction.
// The first allocation of a scope races on the unique index; the loser locks
// the winner's row and continues.
func allocateCounter(ctx context.Context, tenantId string, ruleCode string, component models.CodeRuleComponent, now time.Time) (int64, error) {
	scopeKey := ScopeKey(component.CounterScope, now)
	db := config.GetDB()

	var value int64
	err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		counter := models.CodeCounter{
			TenantId: tenantId,
			RuleCode: ruleCode,
			ScopeKey: scopeKey,
			Value:    component.CounterStart,
		}
		err := tx.Create(&counter).Error
		if err == nil {
			value = counter.Value
			return nil
		}
		mysqlErr, ok := err.(*mysql.MySQLError)
		if !ok || mysqlErr.Number != 1062 {
			return err
		}

		var existing models.CodeCounter
		if err := tx.Clauses(forUpdate()).
			Where("tenant_id = ? AND rule_code = ? AND scope_key = ?", tenantId, ruleCode, scopeKey).
			First(&existing).Error; err != nil {
			return err
		}
		value = existing.Value + component.CounterStep
		return tx.Model(&existing).UpdateColumn("value", value).Error
	})
	if err != nil {
		return 0, err
	}
	return value, nil
}

// GenerateCode renders one code for the rule, probing the caller's uniqueness
// check and retrying within the budget. Rules that only emit counters cannot
// collide, but field and date heavy rules can, hence the probe.
func GenerateCode(ctx context.Context, ruleCode string, fields map[string]string, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	tenantId, ok := utils.GetTenantIdFromContext(ctx)
	if !ok || tenantId == "" {
		return "", utils.NewValidationError("tenant id is required")
	}

	rule, err := models.FetchEnabledCodeRule(ctx, tenantId, ruleCode)
	if shouldFallBack(err) {
		return fallbackCode(ruleCode)
	}
	if err != nil {
		return "", err
	}

	now := time.Now()
	budget := config.CodeGeneratorRetryBudget()
	for attempt := 0; attempt < budget; attempt++ {
		code, err := RenderComponents(rule.Components, now, fields,
			func(component models.CodeRuleComponent) (int64, error) {
				return allocateCounter(ctx, tenantId, ruleCode, component, now)
			},
			randomFromCharset,
		)
		if err != nil {
			return "", err
		}
		if exists == nil {
			return code, nil
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
		config.GetLogger().WithField("rule_code", ruleCode).
			WithField("attempt", attempt+1).
			Warn("generated code already taken, retrying")
	}
	return "", utils.NewTemporaryError("code generation exhausted its retry budget")
}

// shouldFallBack reports whether a rule lookup failure means "no enabled
// rule" rather than a real fault. Only the former may use the fallback;
// anything else surfaces to the caller.
func shouldFallBack(err error) bool {
	return errors.Is(err, utils.ErrorRecordNotFound)
}

// fallbackCode covers tenants without an enabled rule: prefix, day stamp and
// a random tail.
func fallbackCode(ruleCode string) (string, error) {
	tail, err := randomFromCharset(defaultRandomCharset, 6)
	if err != nil {
		return "", err
	}
	prefix := strings.ToUpper(ruleCode)
	if prefix == "" {
		prefix = "DOC"
	}
	return fmt.Sprintf("%s-%s-%s", prefix, time.Now().Format("20060102"), tail), nil
}

// CodeExists builds the duplicate probe for one document table.
func CodeExists[T any](tenantId string) func(ctx context.Context, code string) (bool, error) {
	return func(ctx context.Context, code string) (bool, error) {
		count, err := utils.ResourceCountWhere[T](ctx, tenantId, "code = ?", code)
		if err != nil {
			return false, err
		}
		return count > 0, nil
	}
}
