package models

// Sport is a bookable sport offered on a turf, priced per hour.
type Sport struct {
	ID          int64   `json:"id"`
	TurfID      int64   `json:"id_turf"`
	Name        string  `json:"name"`
	Type        string  `json:"type"`
	RatePerHour float64 `json:"rate_per_hour"`
	Dimensions  string  `json:"dimensions,omitempty"`
	Capacity    int     `json:"capacity,omitempty"`
	Rules       string  `json:"rules,omitempty"`
	IsActive    bool    `json:"is_active"`
}

// Turf is a venue with one or more sports.
type Turf struct {
	ID       int64   `json:"id"`
	Name     string  `json:"name"`
	Slug     string  `json:"slug"`
	Location string  `json:"location"`
	Address  string  `json:"address,omitempty"`
	IsActive bool    `json:"is_active"`
	Sports   []Sport `json:"sports"`
}

// Sport returns the sport with the given id, if the turf offers it.
func (t *Turf) Sport(sportID int64) (*Sport, bool) {
	for i := range t.Sports {
		if t.Sports[i].ID == sportID {
			return &t.Sports[i], true
		}
	}
	return nil, false
}

// MinRate returns the lowest hourly rate among active sports.
func (t *Turf) MinRate() float64 {
	var minRate float64
	for _, s := range t.Sports {
		if !s.IsActive {
			continue
		}
		if minRate == 0 || s.RatePerHour < minRate {
			minRate = s.RatePerHour
		}
	}
	return minRate
}
