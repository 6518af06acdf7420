package models

import (
	"database/sql/driver"
	"math"
	"time"

	"gorm.io/gorm"
)

// Base model with common fields
type BaseModel struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}

// JSON field type for GORM
type JSON []byte

func (j JSON) Value() (driver.Value, error) {
	if j.IsNull() {
		return nil, nil
	}
	return string(j), nil
}

func (j *JSON) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	s, ok := value.([]byte)
	if !ok {
		return nil
	}
	*j = append((*j)[0:0], s...)
	return nil
}

func (j JSON) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}

func (j JSON) IsNull() bool {
	return len(j) == 0 || string(j) == "null"
}

// User model - authentication account, optionally linked to a teacher profile
type User struct {
	BaseModel
	Username  string `json:"username" gorm:"uniqueIndex;size:100;not null"`
	Email     string `json:"email" gorm:"size:255"`
	Password  string `json:"-" gorm:"size:255;not null"`
	Role      string `json:"role" gorm:"size:50;not null;default:'teacher';type:enum('admin','teacher')"` // admin, teacher
	Status    string `json:"status" gorm:"size:50;not null;default:'active'"`
	TeacherID *uint  `json:"teacher_id"`

	// Relationships
	Teacher *Teacher `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
}

// Teacher model - teaching staff tracked by the recovery ledger.
// Identity is immutable once created (name edits allowed, merges are not).
type Teacher struct {
	BaseModel
	Surname   string `json:"surname" gorm:"size:100;not null;index:idx_teacher_name"`
	GivenName string `json:"given_name" gorm:"size:100;not null;index:idx_teacher_name"`
	Email     string `json:"email" gorm:"size:255"`
}

// FullName returns "Surname GivenName" as it appears in import files
func (t *Teacher) FullName() string {
	return t.Surname + " " + t.GivenName
}

// SchoolYear model. Exactly one school year is active at a time; the
// activation writer deactivates all others in the same transaction.
type SchoolYear struct {
	BaseModel
	Name      string    `json:"name" gorm:"size:50;uniqueIndex;not null"`
	StartDate time.Time `json:"start_date" gorm:"type:date;not null"`
	EndDate   time.Time `json:"end_date" gorm:"type:date;not null"`
	IsActive  bool      `json:"is_active" gorm:"default:false;index"`
}

// RecoveryType model - catalog of recovery activity kinds, consumed
// read-only by the ledger for default duration/title resolution.
type RecoveryType struct {
	BaseModel
	Name               string `json:"name" gorm:"size:100;uniqueIndex;not null"`
	Description        string `json:"description" gorm:"type:text"`
	Color              string `json:"color" gorm:"size:20"`
	DefaultDurationMin int    `json:"default_duration_min" gorm:"default:50"`
	RequiresApproval   bool   `json:"requires_approval" gorm:"default:false"`
	RequiresCoTeacher  bool   `json:"requires_co_teacher" gorm:"default:false"`
	IsActive           bool   `json:"is_active" gorm:"default:true"`
}

// RecoveryBudget model - one per teacher per school year. The used
// counters are mutated only through the ledger's ApplyDelta primitive.
type RecoveryBudget struct {
	BaseModel
	TeacherID     uint `json:"teacher_id" gorm:"not null;uniqueIndex:idx_budget_teacher_year"`
	SchoolYearID  uint `json:"school_year_id" gorm:"not null;uniqueIndex:idx_budget_teacher_year"`
	MinutesWeekly int  `json:"minutes_weekly"`
	MinutesAnnual int  `json:"minutes_annual" gorm:"not null"`
	ModulesAnnual int  `json:"modules_annual" gorm:"not null"`
	MinutesUsed   int  `json:"minutes_used" gorm:"not null;default:0"`
	ModulesUsed   int  `json:"modules_used" gorm:"not null;default:0"`

	// Relationships
	Teacher    Teacher    `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	SchoolYear SchoolYear `json:"school_year,omitempty" gorm:"foreignKey:SchoolYearID"`
}

// MinutesRemaining returns the unconsumed minute allocation
func (b *RecoveryBudget) MinutesRemaining() int {
	return b.MinutesAnnual - b.MinutesUsed
}

// ModulesRemaining returns the unconsumed module allocation
func (b *RecoveryBudget) ModulesRemaining() int {
	return b.ModulesAnnual - b.ModulesUsed
}

// PercentageUsed returns module consumption as a 0-100 percentage, one decimal
func (b *RecoveryBudget) PercentageUsed() float64 {
	if b.ModulesAnnual == 0 {
		return 0
	}
	return math.Round(float64(b.ModulesUsed)/float64(b.ModulesAnnual)*1000) / 10
}

// Activity status values
const (
	ActivityStatusPlanned   = "planned"
	ActivityStatusCompleted = "completed"
)

// RecoveryActivity model - a single scheduled or completed recovery slot.
// Hard-deleted (no soft delete) so the teacher-slot unique index stays
// authoritative: at most one live activity per (teacher, date, module).
type RecoveryActivity struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	TeacherID      uint      `json:"teacher_id" gorm:"not null;uniqueIndex:idx_teacher_slot"`
	SchoolYearID   uint      `json:"school_year_id" gorm:"not null;index"`
	RecoveryTypeID uint      `json:"recovery_type_id" gorm:"not null"`
	Date           time.Time `json:"date" gorm:"type:date;not null;uniqueIndex:idx_teacher_slot;index:idx_class_slot"`
	ModuleNumber   int       `json:"module_number" gorm:"not null;uniqueIndex:idx_teacher_slot;index:idx_class_slot"`
	ClassName      string    `json:"class_name" gorm:"size:50;not null;index:idx_class_slot"`
	Title          string    `json:"title" gorm:"size:255"`
	DurationMin    int       `json:"duration_min" gorm:"not null"`
	ModulesEq      int       `json:"modules_eq" gorm:"not null"`
	Status         string    `json:"status" gorm:"size:20;not null;default:'planned'"` // planned, completed
	CoTeacherName  string    `json:"co_teacher_name" gorm:"size:200"`

	// Relationships
	Teacher      Teacher      `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	SchoolYear   SchoolYear   `json:"school_year,omitempty" gorm:"foreignKey:SchoolYearID"`
	RecoveryType RecoveryType `json:"recovery_type,omitempty" gorm:"foreignKey:RecoveryTypeID"`
}

// IsCompleted reports whether the activity is locked by the lifecycle guard
func (a *RecoveryActivity) IsCompleted() bool {
	return a.Status == ActivityStatusCompleted
}

// ActivityLog model - append-only audit trail of ledger mutations
type ActivityLog struct {
	BaseModel
	UserID     uint   `json:"user_id"`
	Action     string `json:"action" gorm:"size:100;not null"`
	Resource   string `json:"resource" gorm:"size:100;not null"`
	ResourceID uint   `json:"resource_id"`
	Details    JSON   `json:"details" gorm:"type:json"`
	IPAddress  string `json:"ip_address" gorm:"size:45"`
	UserAgent  string `json:"user_agent" gorm:"size:500"`

	// Relationships
	User User `json:"user,omitempty" gorm:"foreignKey:UserID"`
}

// LogArchive model - bookkeeping for audit logs shipped to S3
type LogArchive struct {
	BaseModel
	FileName    string    `json:"file_name" gorm:"size:255;not null"`
	S3Key       string    `json:"s3_key" gorm:"size:500;not null"`
	StartDate   time.Time `json:"start_date" gorm:"not null"`
	EndDate     time.Time `json:"end_date" gorm:"not null"`
	RecordCount int       `json:"record_count" gorm:"not null"`
	FileSize    int64     `json:"file_size" gorm:"not null"`
	Status      string    `json:"status" gorm:"size:50;not null;default:'pending'"`
	Error       string    `json:"error" gorm:"type:text"`
}
