package wssec

import (
	"time"

	"github.com/beevik/etree"

	"github.com/grauwen/digikoppeling-wus-cxf/pkg/fault"
)

// wsuTimeFormat is the millisecond-precision UTC form WSS stacks emit.
const wsuTimeFormat = "2006-01-02T15:04:05.000Z"

// addTimestamp appends a wsu:Timestamp to the Security header and
// returns its wsu:Id.
func addTimestamp(security *etree.Element, sc *SecurityContext) string {
	now := sc.clock().Now().UTC()
	id := "TS-" + generateID()
	ts := security.CreateElement("wsu:Timestamp")
	ts.CreateAttr("wsu:Id", id)
	ts.CreateElement("wsu:Created").SetText(now.Format(wsuTimeFormat))
	ts.CreateElement("wsu:Expires").SetText(now.Add(sc.timestampTTL()).Format(wsuTimeFormat))
	return id
}

// verifyTimestamp checks the wsu:Timestamp window against the local
// clock with the configured skew tolerance on both edges.
func verifyTimestamp(security *etree.Element, sc *SecurityContext) error {
	ts := childNS(security, NsSecUtil, "Timestamp")
	if ts == nil {
		return fault.New(fault.StaleOrInvalidTimestamp, "no timestamp in security header")
	}

	created, err := parseWSUTime(childNS(ts, NsSecUtil, "Created"))
	if err != nil {
		return fault.Wrap(fault.StaleOrInvalidTimestamp, err, "unreadable Created")
	}
	expires, err := parseWSUTime(childNS(ts, NsSecUtil, "Expires"))
	if err != nil {
		return fault.Wrap(fault.StaleOrInvalidTimestamp, err, "unreadable Expires")
	}

	if !expires.After(created) {
		return fault.New(fault.StaleOrInvalidTimestamp, "Expires not after Created")
	}

	now := sc.clock().Now()
	skew := sc.skew()
	if created.After(now.Add(skew)) {
		return fault.New(fault.StaleOrInvalidTimestamp, "Created is in the future")
	}
	if now.After(expires.Add(skew)) {
		return fault.New(fault.StaleOrInvalidTimestamp, "timestamp expired")
	}
	return nil
}

func parseWSUTime(elem *etree.Element) (time.Time, error) {
	if elem == nil {
		return time.Time{}, fault.New(fault.StaleOrInvalidTimestamp, "element missing")
	}
	return time.Parse(time.RFC3339, elem.Text())
}
