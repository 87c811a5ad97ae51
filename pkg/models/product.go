// Package models contains domain types for ekaya-admin.
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ProductStatus is the moderation state of a submitted product.
type ProductStatus string

// Known moderation states. The API may send others; see Valid.
const (
	StatusPending   ProductStatus = "PENDING"
	StatusPublished ProductStatus = "PUBLISHED"
	StatusDeclined  ProductStatus = "DECLINED"
)

// Valid reports whether s is one of the three known states.
func (s ProductStatus) Valid() bool {
	switch s {
	case StatusPending, StatusPublished, StatusDeclined:
		return true
	}
	return false
}

// ProductID accepts either a JSON string or a JSON number; the API has sent both.
type ProductID string

func (id *ProductID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ProductID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("product id must be a string or number: %w", err)
	}
	*id = ProductID(n.String())
	return nil
}

// Product is a submitted project as returned by GET /api/products.
// JSON names follow the remote API exactly.
type Product struct {
	ID               ProductID     `json:"id"`
	UUID             string        `json:"uuid"`
	Name             string        `json:"name"`
	ShortDescription string        `json:"bDescription"`
	Description      string        `json:"description"`
	LogoURI          string        `json:"logoURI"`
	BannerURI        string        `json:"bannerURI"`
	Track            string        `json:"track"`
	State            string        `json:"state,omitempty"`
	Status           ProductStatus `json:"status"`
	WalletAddress    string        `json:"walletAddress"`

	TwitterURL       string `json:"twitterURL,omitempty"`
	GithubURL        string `json:"githubURL,omitempty"`
	WebsiteURL       string `json:"websiteURL,omitempty"`
	TelegramURL      string `json:"telegramURL,omitempty"`
	DocumentationURL string `json:"documentationURL,omitempty"`

	TeamMembers  []TeamMember  `json:"teamMembers,omitempty"`
	Milestones   []Milestone   `json:"milestones,omitempty"`
	Achievements []Achievement `json:"achievements,omitempty"`
}

// TeamMember is a person listed on a product's detail page.
type TeamMember struct {
	Name    string `json:"name"`
	XHandle string `json:"xHandle"`
}

// Milestone is a roadmap entry. Dates are passed through as the API formats them.
type Milestone struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	StartDate   string `json:"startDate"`
	EndDate     string `json:"endDate"`
}

// Achievement is a free-text accomplishment.
type Achievement struct {
	Description string `json:"description"`
}
