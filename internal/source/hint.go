package source

import (
	"fmt"
	"regexp"
	"strconv"
)

// The result page advertises the newest round in several places; markup
// revisions have moved it between a script assignment, a hidden input, and
// the headline. Checked in that order.
var roundHintPatterns = []*regexp.Regexp{
	regexp.MustCompile(`lottoDrwNo\s*=\s*(\d+)`),
	regexp.MustCompile(`id=["']lottoDrwNo["'][^>]*value=["'](\d+)["']`),
	regexp.MustCompile(`(\d+)\s*회\s*당첨결과`),
}

// ExtractRoundHint pulls the advertised round number out of a result page.
func ExtractRoundHint(html string) (int, error) {
	for _, pat := range roundHintPatterns {
		m := pat.FindStringSubmatch(html)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil || n <= 0 {
			continue
		}
		return n, nil
	}
	return 0, fmt.Errorf("no round hint in page")
}
