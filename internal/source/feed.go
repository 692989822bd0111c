package source

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jwseok/lotto645-harvester/internal/draw"
)

// feedPayload mirrors the number feed's JSON schema. Field names follow the
// publisher's wire format, not ours.
type feedPayload struct {
	ReturnValue     string `json:"returnValue"`
	DrwNo           int    `json:"drwNo"`
	DrwNoDate       string `json:"drwNoDate"`
	DrwtNo1         int    `json:"drwtNo1"`
	DrwtNo2         int    `json:"drwtNo2"`
	DrwtNo3         int    `json:"drwtNo3"`
	DrwtNo4         int    `json:"drwtNo4"`
	DrwtNo5         int    `json:"drwtNo5"`
	DrwtNo6         int    `json:"drwtNo6"`
	BnusNo          int    `json:"bnusNo"`
	FirstWinamnt    int64  `json:"firstWinamnt"`
	FirstPrzwnerCo  int    `json:"firstPrzwnerCo"`
	FirstAccumamnt  int64  `json:"firstAccumamnt"`
	TotSellamnt     int64  `json:"totSellamnt"`
	ReturnValueNote string `json:"-"`
}

// ErrRoundAbsent reports a well-formed feed answer for a round the
// publisher has not drawn yet. It is not a transport problem.
var ErrRoundAbsent = fmt.Errorf("round not published")

// DecodeDraw parses one number-feed body. A "fail" payload returns
// ErrRoundAbsent; malformed JSON returns a decode error. Callers must keep
// the two apart: only the former proves the round does not exist.
func DecodeDraw(body []byte) (draw.Result, error) {
	var p feedPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return draw.Result{}, fmt.Errorf("decode draw feed: %w", err)
	}
	switch strings.ToLower(p.ReturnValue) {
	case "success":
	case "fail":
		return draw.Result{}, ErrRoundAbsent
	default:
		return draw.Result{}, fmt.Errorf("decode draw feed: unexpected returnValue %q", p.ReturnValue)
	}
	return draw.Result{
		Round:             draw.Round(p.DrwNo),
		Date:              p.DrwNoDate,
		Numbers:           [6]int{p.DrwtNo1, p.DrwtNo2, p.DrwtNo3, p.DrwtNo4, p.DrwtNo5, p.DrwtNo6},
		Bonus:             p.BnusNo,
		FirstPrizeAmount:  p.FirstWinamnt,
		FirstPrizeWinners: p.FirstPrzwnerCo,
		FirstPrizeTotal:   p.FirstAccumamnt,
		TotalSales:        p.TotSellamnt,
	}, nil
}
