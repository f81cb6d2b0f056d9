package dto

// CreateNamedEntityRequest covers categories, tags, and organizations,
// all of which are identified by a unique name.
type CreateNamedEntityRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateLocationRequest registers a city/state/country combination in the
// location directory. Which component is mandatory depends on the endpoint.
type CreateLocationRequest struct {
	City    string `json:"city"`
	State   string `json:"state"`
	Country string `json:"country"`
}
