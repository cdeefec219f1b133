package floor

import (
	"strings"
	"time"

	"github.com/hperssn/parlay/internal/domain"
)

// Yield lets the holder end its turn early with an optional closing remark.
// The yielder's bid was cleared when it was granted, so it has to bid again
// to get the floor back.
func (c *Controller) Yield(id domain.ParticipantID, remark string, now time.Time) (domain.TurnRecord, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now = c.observe(now)

	if err := c.checkHolder(id, now); err != nil {
		return domain.TurnRecord{}, err
	}
	if strings.TrimSpace(remark) != "" {
		if err := domain.ValidateContent(remark, c.cfg.MaxContentLength); err != nil {
			return domain.TurnRecord{}, err
		}
	}
	rec := c.release(domain.EndYielded, remark, true, now)
	c.grant(now)
	return rec, nil
}
