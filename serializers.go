package main

import (
	"context"
	"time"

	"linkbio/models"
	"linkbio/store"
)

type userRecord struct {
	ID        uint   `json:"id"`
	Username  string `json:"username"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type linkRecord struct {
	ID        uint      `json:"id"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	Order     int       `json:"order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	// nil on public pages whose owner hides stats
	ClickCount *int64 `json:"click_count,omitempty"`
}

type profileRecord struct {
	ID              uint         `json:"id"`
	User            *userRecord  `json:"user"`
	Slug            string       `json:"slug"`
	DisplayName     string       `json:"display_name"`
	Bio             string       `json:"bio"`
	Location        string       `json:"location"`
	Website         string       `json:"website"`
	ImageURL        string       `json:"image_url"`
	Twitter         string       `json:"twitter"`
	Instagram       string       `json:"instagram"`
	YouTube         string       `json:"youtube"`
	ShowInDirectory bool         `json:"show_in_directory"`
	ShowStats       bool         `json:"show_stats"`
	HideEmail       bool         `json:"hide_email"`
	Links           []linkRecord `json:"links"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

type clickRecord struct {
	ID        uint      `json:"id"`
	ClickedAt time.Time `json:"clicked_at"`
	IPAddress *string   `json:"ip_address"`
}

type directoryEntry struct {
	Slug        string `json:"slug"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image_url"`
	Bio         string `json:"bio"`
}

func serializeUser(u *models.User) *userRecord {
	if u == nil {
		return nil
	}
	return &userRecord{ID: u.ID, Username: u.Username, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName}
}

func serializeClick(c *models.Click) clickRecord {
	return clickRecord{ID: c.ID, ClickedAt: c.ClickedAt, IPAddress: c.IPAddress}
}

// serializeLinks attaches live click counts from a single grouped query.
func serializeLinks(ctx context.Context, st *store.Store, links []models.Link, withCounts bool) ([]linkRecord, error) {
	out := make([]linkRecord, 0, len(links))
	var counts map[uint]int64
	if withCounts {
		ids := make([]uint, len(links))
		for i, l := range links {
			ids[i] = l.ID
		}
		var err error
		if counts, err = st.ClickCounts(ctx, ids); err != nil {
			return nil, err
		}
	}
	for _, l := range links {
		rec := linkRecord{ID: l.ID, Title: l.Title, URL: l.URL, Order: l.Order, CreatedAt: l.CreatedAt, UpdatedAt: l.UpdatedAt}
		if withCounts {
			n := counts[l.ID]
			rec.ClickCount = &n
		}
		out = append(out, rec)
	}
	return out, nil
}

func serializeLink(ctx context.Context, st *store.Store, l *models.Link) (linkRecord, error) {
	recs, err := serializeLinks(ctx, st, []models.Link{*l}, true)
	if err != nil {
		return linkRecord{}, err
	}
	return recs[0], nil
}

// serializeProfile renders p with its ordered links. public applies the owner's
// visibility switches.
func serializeProfile(ctx context.Context, st *store.Store, p *models.Profile, public bool) (*profileRecord, error) {
	links, err := st.LinksForProfile(ctx, p.ID)
	if err != nil {
		return nil, err
	}
	linkRecs, err := serializeLinks(ctx, st, links, !public || p.ShowStats)
	if err != nil {
		return nil, err
	}
	user := serializeUser(p.User)
	if public && p.HideEmail && user != nil {
		user.Email = ""
	}
	return &profileRecord{
		ID:              p.ID,
		User:            user,
		Slug:            p.Slug,
		DisplayName:     p.DisplayName,
		Bio:             p.Bio,
		Location:        p.Location,
		Website:         p.Website,
		ImageURL:        p.ImageURL,
		Twitter:         p.Twitter,
		Instagram:       p.Instagram,
		YouTube:         p.YouTube,
		ShowInDirectory: p.ShowInDirectory,
		ShowStats:       p.ShowStats,
		HideEmail:       p.HideEmail,
		Links:           linkRecs,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}, nil
}
