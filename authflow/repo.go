package authflow

import "github.com/jrsteele09/social-connect/platforms"

// Repo stores pending attempts keyed by state.
type Repo interface {
	Upsert(attempt *Attempt) error
	Get(state string) (*Attempt, error)
	Delete(state string) error
	// DeletePlatform removes every attempt for a platform and reports how many.
	DeletePlatform(platform platforms.Platform) (int, error)
	List() ([]*Attempt, error)
}
