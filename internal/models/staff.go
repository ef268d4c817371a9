package models

import "github.com/google/uuid"

const (
	EmploymentMonthly = "Monthly"
	EmploymentDaily   = "Daily"
)

// Staff is an employee of the tenant. Employees log in with their email.
type Staff struct {
	TenantModel
	ProjectID      *uuid.UUID `gorm:"type:uuid" json:"project_id"`
	FullName       string     `gorm:"not null" json:"full_name" binding:"required"`
	Email          string     `json:"email" binding:"omitempty,email"`
	Role           string     `json:"role"`
	Department     string     `json:"department"`
	EmploymentType string     `gorm:"not null;default:Monthly" json:"employment_type"`
	BaseSalary     float64    `json:"base_salary"`
	DailyRate      float64    `json:"daily_rate"`
	Penalties      float64    `json:"penalties"`
	Vacations      int        `json:"vacations"`
	HireDate       string     `json:"hire_date"`
	AvatarURL      string     `json:"avatar_url"`
	Status         string     `gorm:"not null;default:Active" json:"status"`
	PasswordHash   *string    `gorm:"column:password_hash;->" json:"-"`
}

func (Staff) TableName() string { return "staff" }

// PayrollContract records the agreed pay terms of a staff member.
type PayrollContract struct {
	TenantModel
	StaffID    uuid.UUID `gorm:"type:uuid;not null" json:"staff_id" binding:"required"`
	StartDate  string    `json:"start_date"`
	EndDate    string    `json:"end_date"`
	BaseSalary float64   `json:"base_salary"`
	Allowances float64   `json:"allowances"`
	Status     string    `gorm:"not null;default:Active" json:"status"`
}

func (PayrollContract) TableName() string { return "payroll_contracts" }

// SalaryRegister is one month's computed pay for a staff member.
type SalaryRegister struct {
	TenantModel
	StaffID    uuid.UUID `gorm:"type:uuid;not null" json:"staff_id" binding:"required"`
	Period     string    `json:"period"`
	Gross      float64   `json:"gross"`
	Deductions float64   `json:"deductions"`
	Net        float64   `json:"net"`
	Status     string    `gorm:"not null;default:Draft" json:"status"`
}

func (SalaryRegister) TableName() string { return "salary_registers" }
