package main

import (
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

func registeredRoutes(t *testing.T) map[string]bool {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	registerRoutes(r)
	routes := make(map[string]bool)
	for _, route := range r.Routes() {
		routes[route.Method+" "+route.Path] = true
	}
	return routes
}

func TestPublicSurfaceIsUuidKeyed(t *testing.T) {
	for route := range registeredRoutes(t) {
		for _, segment := range strings.Split(route, "/") {
			if segment == ":id" {
				t.Fatalf("route %q exposes an internal id parameter", route)
			}
		}
	}
}

func TestDemandPoolRoutesRegistered(t *testing.T) {
	routes := registeredRoutes(t)
	expected := []string{
		"GET /api/demands",
		"POST /api/demands/from-sales-order/:uuid",
		"POST /api/demands/:uuid/push",
		"POST /api/demands/:uuid/withdraw",
	}
	for _, route := range expected {
		if !routes[route] {
			t.Fatalf("expected route %q to be registered", route)
		}
	}
}

func TestPlanRoutesResolveByUuid(t *testing.T) {
	routes := registeredRoutes(t)
	expected := []string{
		"GET /api/plans/:uuid",
		"POST /api/plans/:uuid/push",
		"DELETE /api/plans/:uuid",
		"POST /api/work-orders/:uuid/release",
	}
	for _, route := range expected {
		if !routes[route] {
			t.Fatalf("expected route %q to be registered", route)
		}
	}
}
