package floor

import (
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

// Registry holds the latest urgency bid of each member for the current
// bidding cycle. It is not safe for concurrent use; the Controller owning it
// serializes access.
type Registry struct {
	members map[domain.ParticipantID]struct{}
	bids    map[domain.ParticipantID]domain.UrgencyBid
	speaker domain.ParticipantID
}

func NewRegistry(members []domain.ParticipantID) *Registry {
	r := &Registry{
		members: make(map[domain.ParticipantID]struct{}, len(members)),
		bids:    make(map[domain.ParticipantID]domain.UrgencyBid),
	}
	for _, id := range members {
		r.members[id] = struct{}{}
	}
	return r
}

func (r *Registry) IsMember(id domain.ParticipantID) bool {
	_, ok := r.members[id]
	return ok
}

// Submit records a bid, replacing any earlier bid from the same participant.
func (r *Registry) Submit(id domain.ParticipantID, score int, at time.Time) error {
	if err := domain.ValidateUrgency(score); err != nil {
		return err
	}
	if !r.IsMember(id) {
		return domain.ErrNotRegistered
	}
	if r.speaker != "" && r.speaker == id {
		return domain.ErrAlreadySpeaking
	}
	r.bids[id] = domain.UrgencyBid{ParticipantID: id, Score: score, SubmittedAt: at}
	return nil
}

// Winner returns the highest bid. Equal scores go to the earliest submission,
// then to the lowest participant id.
func (r *Registry) Winner() (domain.UrgencyBid, bool) {
	var best domain.UrgencyBid
	found := false
	for _, bid := range r.bids {
		if !found || outranks(bid, best) {
			best = bid
			found = true
		}
	}
	return best, found
}

func outranks(a, b domain.UrgencyBid) bool {
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	if !a.SubmittedAt.Equal(b.SubmittedAt) {
		return a.SubmittedAt.Before(b.SubmittedAt)
	}
	return a.ParticipantID < b.ParticipantID
}

func (r *Registry) Clear() {
	clear(r.bids)
}

func (r *Registry) Len() int {
	return len(r.bids)
}

func (r *Registry) setSpeaker(id domain.ParticipantID) {
	r.speaker = id
}
