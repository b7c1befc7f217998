package workflow

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"bitbucket.org/mmdatafocus/mes_backend/models"
	"bitbucket.org/mmdatafocus/mes_backend/utils"
	"github.com/shopspring/decimal"
)

// The engine is pure: all reads happen before it runs and all writes after,
// so a run is reproducible from its input and can be unit tested without a
// database.

// PlanMaterial carries the planning parameters of one material.
type PlanMaterial struct {
	Id                  int
	LeadTimeDays        int
	TransitTimeDays     int
	SafetyStock         decimal.Decimal
	MinLotQty           decimal.Decimal
	LotMultipleQty      decimal.Decimal
	PreferredSupplierId *int
	CanMake             bool
	CanBuy              bool
}

// PlanDemandLine is one pool line entering the run.
type PlanDemandLine struct {
	DemandItemId int
	MaterialId   int
	Quantity     decimal.Decimal
	DueDate      time.Time
	SalesOrderId *int
}

// PlanInventory is the material's supply position at run time.
type PlanInventory struct {
	OnHand       decimal.Decimal
	OpenReceipts decimal.Decimal
}

// EngineBomLine is one approved component requirement.
type EngineBomLine struct {
	ComponentId int
	Quantity    decimal.Decimal
}

// EngineInput is everything one run consumes.
type EngineInput struct {
	Bucket    models.TimeBucket
	Now       time.Time
	Demands   []PlanDemandLine
	Materials map[int]PlanMaterial
	Inventory map[int]PlanInventory
	// BomLines returns the approved structure effective at the given date.
	// Empty means the material has no manufacturing structure.
	BomLines func(materialId int, asOf time.Time) ([]EngineBomLine, error)
	MaxDepth int
}

// EngineItem is one planned order line. ParentIndex links exploded component
// lines to the item that required them; -1 marks a top-level line.
type EngineItem struct {
	MaterialId         int
	BomLevel           int
	DemandItemId       *int
	ParentIndex        int
	SalesOrderId       *int
	BucketDate         time.Time
	DueDate            time.Time
	SuggestedStartDate time.Time
	GrossQuantity      decimal.Decimal
	AvailableInventory decimal.Decimal
	SafetyStock        decimal.Decimal
	NetQuantity        decimal.Decimal
	PlannedQuantity    decimal.Decimal
	SuggestedAction    models.SuggestedAction
	SupplierId         *int
}

type EngineWarning struct {
	Kind       models.PlanWarningKind
	MaterialId int
	ItemIndex  int
	Message    string
}

type EngineResult struct {
	Items    []EngineItem
	Warnings []EngineWarning
}

const defaultMaxBomDepth = 20

func (input *EngineInput) bucketDate(t time.Time) time.Time {
	if input.Bucket == models.TimeBucketWeek {
		return utils.TruncateToWeek(t)
	}
	return utils.TruncateToDay(t)
}

// RunPlanningEngine nets the demand lines against inventory, sizes the
// resulting lots and explodes make lines through the approved structure.
// Lines are processed in (due date, material, demand item) order so earlier
// demand drains inventory first and reruns over the same input produce the
// same result.
func RunPlanningEngine(input EngineInput) (*EngineResult, error) {
	maxDepth := input.MaxDepth
	if maxDepth <= 0 {
		maxDepth = defaultMaxBomDepth
	}

	demands := make([]PlanDemandLine, len(input.Demands))
	copy(demands, input.Demands)
	sort.Slice(demands, func(i, j int) bool {
		a, b := demands[i], demands[j]
		if !a.DueDate.Equal(b.DueDate) {
			return a.DueDate.Before(b.DueDate)
		}
		if a.MaterialId != b.MaterialId {
			return a.MaterialId < b.MaterialId
		}
		return a.DemandItemId < b.DemandItemId
	})

	run := &engineRun{
		input:     &input,
		maxDepth:  maxDepth,
		remaining: make(map[int]decimal.Decimal),
		result:    &EngineResult{},
	}

	for i := range demands {
		demand := demands[i]
		demandItemId := demand.DemandItemId
		if err := run.plan(planRequest{
			materialId:   demand.MaterialId,
			gross:        demand.Quantity,
			dueDate:      demand.DueDate,
			level:        0,
			parentIndex:  -1,
			demandItemId: &demandItemId,
			salesOrderId: demand.SalesOrderId,
			path:         nil,
		}); err != nil {
			return nil, err
		}
	}
	return run.result, nil
}

type planRequest struct {
	materialId   int
	gross        decimal.Decimal
	dueDate      time.Time
	level        int
	parentIndex  int
	demandItemId *int
	salesOrderId *int
	path         []int
}

type engineRun struct {
	input     *EngineInput
	maxDepth  int
	remaining map[int]decimal.Decimal
	result    *EngineResult
}

// available returns the material's allocatable supply, initialized once per
// run. Safety stock is reserved up front: a position below safety yields a
// negative balance whose deficit folds into the first net requirement.
func (r *engineRun) available(materialId int) decimal.Decimal {
	if v, ok := r.remaining[materialId]; ok {
		return v
	}
	inventory := r.input.Inventory[materialId]
	material := r.input.Materials[materialId]
	v := inventory.OnHand.Add(inventory.OpenReceipts).Sub(material.SafetyStock)
	r.remaining[materialId] = v
	return v
}

func (r *engineRun) plan(req planRequest) error {
	for _, ancestor := range req.path {
		if ancestor == req.materialId {
			return utils.NewIntegrityError("bom_cycle", cyclePath(req.path, req.materialId))
		}
	}
	if req.level > r.maxDepth {
		return utils.NewIntegrityError("bom structure exceeds maximum depth", strconv.Itoa(r.maxDepth))
	}

	material, known := r.input.Materials[req.materialId]
	if !known {
		return utils.NewIntegrityError("demand references unknown material", strconv.Itoa(req.materialId))
	}

	avail := r.available(req.materialId)
	var allocated, net decimal.Decimal
	if avail.GreaterThan(decimal.Zero) {
		allocated = decimal.Min(avail, req.gross)
		net = req.gross.Sub(allocated)
		r.remaining[req.materialId] = avail.Sub(allocated)
	} else {
		// below safety: deficit joins the first requirement
		net = req.gross.Sub(avail)
		r.remaining[req.materialId] = decimal.Zero
	}

	planned := decimal.Zero
	if net.GreaterThan(decimal.Zero) {
		planned = net
		if material.MinLotQty.GreaterThan(decimal.Zero) {
			planned = utils.MaxDecimal(planned, material.MinLotQty)
		}
		if material.LotMultipleQty.GreaterThan(decimal.Zero) {
			planned = utils.CeilToMultiple(planned, material.LotMultipleQty)
		}
		// lot sizing overshoot covers future demand
		r.remaining[req.materialId] = r.remaining[req.materialId].Add(planned.Sub(net))
	}

	offsetDays := material.LeadTimeDays + material.TransitTimeDays
	start := req.dueDate.AddDate(0, 0, -offsetDays)

	item := EngineItem{
		MaterialId:         req.materialId,
		BomLevel:           req.level,
		DemandItemId:       req.demandItemId,
		ParentIndex:        req.parentIndex,
		SalesOrderId:       req.salesOrderId,
		BucketDate:         r.input.bucketDate(req.dueDate),
		DueDate:            req.dueDate,
		SuggestedStartDate: start,
		GrossQuantity:      req.gross,
		AvailableInventory: allocated,
		SafetyStock:        material.SafetyStock,
		NetQuantity:        net,
		PlannedQuantity:    planned,
		SuggestedAction:    models.SuggestedActionNone,
	}

	index := len(r.result.Items)
	r.result.Items = append(r.result.Items, item)

	if planned.IsZero() {
		return nil
	}

	switch {
	case material.CanMake:
		r.result.Items[index].SuggestedAction = models.SuggestedActionMake
	case material.CanBuy:
		r.result.Items[index].SuggestedAction = models.SuggestedActionBuy
		r.result.Items[index].SupplierId = material.PreferredSupplierId
	default:
		r.result.Warnings = append(r.result.Warnings, EngineWarning{
			Kind:       models.PlanWarningSourcing,
			MaterialId: req.materialId,
			ItemIndex:  index,
			Message:    fmt.Sprintf("material %d has neither an approved structure nor a supplier", req.materialId),
		})
	}

	today := r.input.bucketDate(r.input.Now)
	if start.Before(today) {
		r.result.Items[index].SuggestedStartDate = today
		r.result.Warnings = append(r.result.Warnings, EngineWarning{
			Kind:       models.PlanWarningLateStart,
			MaterialId: req.materialId,
			ItemIndex:  index,
			Message: fmt.Sprintf("material %d should have started on %s to meet %s",
				req.materialId, start.Format("2006-01-02"), req.dueDate.Format("2006-01-02")),
		})
	}

	if r.result.Items[index].SuggestedAction != models.SuggestedActionMake {
		return nil
	}

	componentDue := r.result.Items[index].SuggestedStartDate
	lines, err := r.input.BomLines(req.materialId, componentDue)
	if err != nil {
		return err
	}
	path := append(append([]int{}, req.path...), req.materialId)
	for _, line := range lines {
		if err := r.plan(planRequest{
			materialId:   line.ComponentId,
			gross:        planned.Mul(line.Quantity),
			dueDate:      componentDue,
			level:        req.level + 1,
			parentIndex:  index,
			salesOrderId: req.salesOrderId,
			path:         path,
		}); err != nil {
			return err
		}
	}
	return nil
}

func cyclePath(path []int, repeated int) string {
	parts := make([]string, 0, len(path)+1)
	started := false
	for _, id := range path {
		if id == repeated {
			started = true
		}
		if started {
			parts = append(parts, strconv.Itoa(id))
		}
	}
	parts = append(parts, strconv.Itoa(repeated))
	return strings.Join(parts, " -> ")
}
