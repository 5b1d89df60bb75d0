package models

import "github.com/google/uuid"

type Project struct {
	Base
	Approval

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`

	Tasks []Task `json:"tasks,omitempty"`
}

// Task ownership and project approval are checked once, when the task is
// created.
type Task struct {
	Base
	ProjectID uuid.UUID `gorm:"type:uuid;not null;index" json:"project_id"`
	Project   *Project  `json:"-"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	SubmittedBy string `gorm:"size:50;not null" json:"submitted_by"`

	WorkElements []WorkElement `json:"work_elements,omitempty"`
}

type WorkElement struct {
	Base
	TaskID uuid.UUID `gorm:"type:uuid;not null;index" json:"task_id"`
	Task   *Task     `json:"-"`

	Name        string `gorm:"size:255;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
	SubmittedBy string `gorm:"size:50;not null" json:"submitted_by"`
}
