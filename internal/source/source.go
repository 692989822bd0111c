// Package source describes the upstream publishing surface: endpoint
// builders for the number feed, winner-store listings, and result pages,
// plus decoding of the feed's JSON payload. Nothing here performs network
// I/O; the fetch layer consumes the URLs this package builds.
package source

import (
	"fmt"
	"net/url"
)

// Default publisher hosts. The site answers under both, and either one can
// be flaky while the other still serves.
const (
	DefaultPrimaryHost   = "www.dhlottery.co.kr"
	DefaultSecondaryHost = "dhlottery.co.kr"
)

// Game constant for the 6/45 draw in the store listing endpoint.
const storeGameCode = "L645"

// Endpoints builds request URLs against a configurable pair of hosts.
type Endpoints struct {
	Primary   string
	Secondary string
}

// NewEndpoints returns endpoint builders for the given hosts, falling back
// to the publisher defaults when a host is empty.
func NewEndpoints(primary, secondary string) Endpoints {
	if primary == "" {
		primary = DefaultPrimaryHost
	}
	if secondary == "" {
		secondary = DefaultSecondaryHost
	}
	return Endpoints{Primary: primary, Secondary: secondary}
}

// Hosts returns the fallback order for fetch attempts.
func (e Endpoints) Hosts() []string {
	if e.Secondary == "" || e.Secondary == e.Primary {
		return []string{e.Primary}
	}
	return []string{e.Primary, e.Secondary}
}

// DrawJSON returns the number-feed URL for one round. Absent rounds answer
// HTTP 200 with a "fail" payload, so existence is decided by the body.
func (e Endpoints) DrawJSON(host string, round int) string {
	q := url.Values{}
	q.Set("method", "getLottoNumber")
	q.Set("drwNo", fmt.Sprintf("%d", round))
	return buildURL(host, "/common.do", q)
}

// Stores returns the winner-store listing URL for one round and page.
func (e Endpoints) Stores(host string, round, page int) string {
	q := url.Values{}
	q.Set("method", "topStore")
	q.Set("pageGubun", storeGameCode)
	q.Set("drwNo", fmt.Sprintf("%d", round))
	q.Set("nowPage", fmt.Sprintf("%d", page))
	return buildURL(host, "/store.do", q)
}

// Results returns the prize-result page URL for one round.
func (e Endpoints) Results(host string, round int) string {
	q := url.Values{}
	q.Set("method", "byWin")
	q.Set("drwNo", fmt.Sprintf("%d", round))
	return buildURL(host, "/gameResult.do", q)
}

// LatestResults returns the prize-result page without a round parameter;
// the publisher serves the newest round, which carries the round hint.
func (e Endpoints) LatestResults(host string) string {
	q := url.Values{}
	q.Set("method", "byWin")
	return buildURL(host, "/gameResult.do", q)
}

func buildURL(host, path string, q url.Values) string {
	u := url.URL{Scheme: "https", Host: host, Path: path, RawQuery: q.Encode()}
	return u.String()
}
