package transport

import "time"

// CreateFollowUpRequest is accepted as JSON or as multipart form fields
// next to an optional selfie file.
type CreateFollowUpRequest struct {
	VisitType string     `json:"visitType" form:"visitType" validate:"required,oneof=telecall visit"`
	Date      *time.Time `json:"date" form:"date"`
	Commit    *time.Time `json:"commit" form:"commit"`
	Attitude  string     `json:"attitude" form:"attitude" validate:"max=200"`
	Remarks   string     `json:"remarks" form:"remarks" validate:"max=2000"`
	NoReply   bool       `json:"noReply" form:"noReply"`
	Latitude  *float64   `json:"latitude" form:"latitude" validate:"required_with=Longitude,omitempty,latitude"`
	Longitude *float64   `json:"longitude" form:"longitude" validate:"required_with=Latitude,omitempty,longitude"`
}

type FollowUpResponse struct {
	ID            string     `json:"id"`
	CaseNo        string     `json:"caseNo"`
	VisitType     string     `json:"visitType"`
	Date          time.Time  `json:"date"`
	Commit        *time.Time `json:"commit"`
	CommitStatus  string     `json:"commitStatus,omitempty"`
	Attitude      string     `json:"attitude"`
	Remarks       string     `json:"remarks"`
	NoReply       bool       `json:"noReply"`
	CreatedBy     string     `json:"createdBy"`
	CreatedByName *string    `json:"createdByName"`
	Latitude      *float64   `json:"latitude"`
	Longitude     *float64   `json:"longitude"`
	SelfieURL     string     `json:"selfieUrl,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
}

type FollowUpListResponse struct {
	Items []FollowUpResponse `json:"items"`
}
