package model

import "time"

const (
	GenderMale   = "Male"
	GenderFemale = "Female"
)

type Student struct {
	ID          string    `json:"id,omitempty" bson:"_id,omitempty" validate:"omitempty,mongodb"`
	RegNo       string    `json:"reg_no" bson:"reg_no" validate:"required,reg_no"`
	FullName    string    `json:"full_name" bson:"full_name" validate:"required,min=2,max=100"`
	Email       string    `json:"email,omitempty" bson:"email,omitempty" validate:"omitempty,email"`
	Phone       string    `json:"phone,omitempty" bson:"phone,omitempty" validate:"omitempty,e164"`
	Gender      string    `json:"gender" bson:"gender" validate:"required,oneof=Male Female"`
	Course      string    `json:"course,omitempty" bson:"course,omitempty" validate:"omitempty,max=100"`
	YearOfStudy string    `json:"year_of_study,omitempty" bson:"year_of_study,omitempty" validate:"omitempty,max=20"`
	CreatedAt   time.Time `json:"created_at" bson:"created_at" validate:"omitempty"`
}

// StudentProfileUpdate carries the only fields a student may edit after
// booking logic has touched the record.
type StudentProfileUpdate struct {
	FullName string `json:"full_name,omitempty" validate:"omitempty,min=2,max=100"`
	Phone    string `json:"phone,omitempty" validate:"omitempty,e164"`
}
