package layout

import "github.com/invoica/backend/internal/models"

// Item is one entry of the navigation menu.
type Item struct {
	Key   string `json:"key"`
	Label string `json:"label"`
	Path  string `json:"path"`
}

// Navigation is the menu a session sees.
type Navigation struct {
	OrganizationID   string                  `json:"organization_id"`
	OrgName          string                  `json:"org_name"`
	Role             string                  `json:"role"`
	SubscriptionPlan models.SubscriptionPlan `json:"subscription_plan"`
	ModuleType       models.ModuleType       `json:"module_type"`
	Items            []Item                  `json:"items"`
}

type feature struct {
	key       string
	label     string
	path      string
	plan      models.SubscriptionPlan
	adminOnly bool
}

var features = []feature{
	{key: "dashboard", label: "Dashboard", path: "/", plan: models.PlanSilver},
	{key: "projects", path: "/projects", plan: models.PlanGold},
	{key: "units", plan: models.PlanGold},
	{key: "customers", label: "Customers", path: "/customers", plan: models.PlanSilver},
	{key: "invoices", label: "Invoices", path: "/invoices", plan: models.PlanSilver},
	{key: "cheques", label: "Cheques", path: "/cheques", plan: models.PlanGold},
	{key: "purchases", label: "Purchases", path: "/purchases", plan: models.PlanGold},
	{key: "suppliers", label: "Suppliers", path: "/suppliers", plan: models.PlanGold},
	{key: "expenses", label: "Expenses", path: "/expenses", plan: models.PlanSilver},
	{key: "staff", label: "Staff", path: "/staff", plan: models.PlanSilver},
	{key: "payroll", label: "Payroll", path: "/payroll", plan: models.PlanGold, adminOnly: true},
	{key: "assets", label: "Assets", path: "/assets", plan: models.PlanPlatinum},
	{key: "reports", label: "Reports", path: "/reports", plan: models.PlanPlatinum, adminOnly: true},
	{key: "forecasting", label: "Forecasting", path: "/forecasting", plan: models.PlanPlatinum, adminOnly: true},
	{key: "settings", label: "Settings", path: "/settings", plan: models.PlanSilver, adminOnly: true},
}

// Build derives the navigation for s from its plan, module type and role.
func Build(s models.Session) Navigation {
	nav := Navigation{
		OrganizationID:   s.OrgID.String(),
		OrgName:          s.OrgName,
		Role:             s.Role,
		SubscriptionPlan: s.SubscriptionPlan,
		ModuleType:       s.ModuleType,
	}
	for _, f := range features {
		if !s.IsSuperadmin() && s.SubscriptionPlan.Rank() < f.plan.Rank() {
			continue
		}
		if f.adminOnly && s.IsEmployee {
			continue
		}
		nav.Items = append(nav.Items, f.item(s.ModuleType))
	}
	if s.IsSuperadmin() {
		nav.Items = append(nav.Items, Item{Key: "organizations", Label: "Organizations", Path: "/superadmin"})
	}
	return nav
}

func (f feature) item(module models.ModuleType) Item {
	it := Item{Key: f.key, Label: f.label, Path: f.path}
	service := module == models.ModuleServiceMarketing
	switch f.key {
	case "projects":
		it.Label = "Projects"
		if service {
			it.Label = "Client Projects"
		}
	case "units":
		it.Label, it.Path = "Units", "/units"
		if service {
			it.Label, it.Path = "Services", "/services"
		}
	}
	return it
}

// MinPlan returns the lowest plan that includes the feature key, Silver for unknown keys.
func MinPlan(key string) models.SubscriptionPlan {
	for _, f := range features {
		if f.key == key {
			return f.plan
		}
	}
	return models.PlanSilver
}

// AdminOnly reports whether the feature key is hidden from employees.
func AdminOnly(key string) bool {
	for _, f := range features {
		if f.key == key {
			return f.adminOnly
		}
	}
	return false
}
