package client

// Record is a single object from a collection endpoint. Every record carries
// at least id, hostname, licenseNumber, dataModel and retrievedAt, plus
// fields specific to its data model.
type Record = map[string]any

// CollectionResponse is one page of a T3 collection endpoint.
type CollectionResponse struct {
	Data     []Record `json:"data"`
	Total    *int     `json:"total"`
	Page     int      `json:"page"`
	PageSize int      `json:"pageSize"`
}

// TotalCount returns the total number of records across all pages.
func (r *CollectionResponse) TotalCount() (int, bool) {
	if r.Total == nil {
		return 0, false
	}
	return *r.Total, true
}

// PageSizeValue returns the server-reported page size.
func (r *CollectionResponse) PageSizeValue() (int, bool) {
	return r.PageSize, r.PageSize > 0
}

// Len returns the number of records on this page.
func (r *CollectionResponse) Len() int {
	return len(r.Data)
}

// Items returns the records on this page.
func (r *CollectionResponse) Items() []Record {
	return r.Data
}

// License is a Metrc license available to the authenticated user.
type License struct {
	LicenseNumber string `json:"licenseNumber"`
	LicenseName   string `json:"licenseName"`
}

// AuthResponse is returned by the authentication endpoints.
type AuthResponse struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken,omitempty"`
	ExpiresIn    int    `json:"expiresIn,omitempty"`
}

// CredentialsRequest is the body of POST /v2/auth/credentials.
type CredentialsRequest struct {
	Hostname string `json:"hostname" validate:"required"`
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
	OTP      string `json:"otp,omitempty"`
	Email    string `json:"email,omitempty" validate:"omitempty,email"`
}

// APIKeyRequest is the body of POST /v2/auth/apikey.
type APIKeyRequest struct {
	APIKey    string `json:"apiKey" validate:"required"`
	StateCode string `json:"stateCode,omitempty"`
}
