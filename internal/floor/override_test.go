package floor

import (
	"errors"
	"testing"

	"github.com/hperssn/parlay/internal/domain"
)

func TestOverrideSingleUse(t *testing.T) {
	var o Override

	if !o.Available() {
		t.Fatalf("fresh override should be available")
	}
	if _, ok := o.TakeIfArmed(); ok {
		t.Fatalf("unarmed override must not grant")
	}
	if err := o.Arm(); err != nil {
		t.Fatalf("arm: %v", err)
	}
	if err := o.Arm(); !errors.Is(err, domain.ErrAlreadyUsed) {
		t.Fatalf("second arm = %v, want ErrAlreadyUsed", err)
	}

	id, ok := o.TakeIfArmed()
	if !ok || id != domain.HumanObserver {
		t.Fatalf("TakeIfArmed = %q, %v", id, ok)
	}
	if o.Available() || o.Armed() {
		t.Fatalf("override should be consumed and disarmed")
	}
	if _, ok := o.TakeIfArmed(); ok {
		t.Fatalf("consumed override must not grant twice")
	}
	if err := o.Arm(); !errors.Is(err, domain.ErrAlreadyUsed) {
		t.Fatalf("arm after consume = %v, want ErrAlreadyUsed", err)
	}
}
