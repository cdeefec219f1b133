package floor

import "github.com/hperssn/parlay/internal/domain"

// Override is the human observer's single-use claim on the next floor grant.
type Override struct {
	armed    bool
	consumed bool
}

// Arm fails once the token has been armed or consumed.
func (o *Override) Arm() error {
	if o.consumed || o.armed {
		return domain.ErrAlreadyUsed
	}
	o.armed = true
	return nil
}

// TakeIfArmed hands out the human observer and consumes the token.
func (o *Override) TakeIfArmed() (domain.ParticipantID, bool) {
	if !o.armed || o.consumed {
		return "", false
	}
	o.armed = false
	o.consumed = true
	return domain.HumanObserver, true
}

func (o *Override) Armed() bool { return o.armed }

// Available reports whether Arm would succeed.
func (o *Override) Available() bool {
	return !o.armed && !o.consumed
}
