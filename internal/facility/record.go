// Package facility maps facility rows onto the feed record shape.
package facility

// RawRecord is one source row keyed by column name. Values are whatever the
// source driver produced; keys outside the mapped set are ignored.
type RawRecord map[string]any

// Chunk is an ordered group of raw records read in one fetch.
type Chunk []RawRecord

// EntityIDPrefix is prepended to the raw id to form the feed entity id.
const EntityIDPrefix = "facility-"

// FeedRecord is the feed-shaped facility. Every field except EntityID encodes
// as null when the source value is absent.
type FeedRecord struct {
	EntityID  string   `json:"entity_id"`
	Name      *string  `json:"name"`
	Telephone *string  `json:"telephone"`
	URL       *string  `json:"url"`
	Location  Location `json:"location"`
}

// Location holds the coordinates and postal address of a facility
type Location struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Address   Address  `json:"address"`
}

// Address is the postal address of a facility
type Address struct {
	Country       *string `json:"country"`
	Locality      *string `json:"locality"`
	Region        *string `json:"region"`
	PostalCode    *string `json:"postal_code"`
	StreetAddress *string `json:"street_address"`
}

// Columns lists the source columns read by Transform, in select order.
var Columns = []string{
	"id",
	"name",
	"phone",
	"url",
	"latitude",
	"longitude",
	"country",
	"locality",
	"region",
	"postal_code",
	"street_address",
}
