// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is an affiliated masjid. It includes case/diacritic-insensitive
// fields for search/sort and the aggregate caseload counters.
//
// The three counters are mutated only via atomic increment/decrement
// operations (see organizationstore); ApplicationsInProgress is clamped at
// zero on decrement.
type Organization struct {
	ID          primitive.ObjectID `bson:"_id" json:"id"`
	Name        string             `bson:"name" json:"name"`
	NameCI      string             `bson:"name_ci" json:"-"`
	City        string             `bson:"city" json:"city"`
	CityCI      string             `bson:"city_ci" json:"-"`
	State       string             `bson:"state" json:"state"`
	StateCI     string             `bson:"state_ci" json:"-"`
	TimeZone    string             `bson:"time_zone" json:"time_zone"`
	ContactInfo string             `bson:"contact_info" json:"contact_info"`
	Status      string             `bson:"status" json:"status"`

	ApplicationsInProgress   int64   `bson:"applications_in_progress" json:"applications_in_progress"`
	TotalApplicationsHandled int64   `bson:"total_applications_handled" json:"total_applications_handled"`
	TotalAmountDisbursed     float64 `bson:"total_amount_disbursed" json:"total_amount_disbursed"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}
