package highlight

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// ScanTokenData extracts the resultId and data array from a raw
// semanticTokens result without a full JSON decode. Token responses for
// large files run to hundreds of thousands of integers, and the general
// decoder's reflection cost shows up on the UI thread; this fast path
// walks the array once with gjson instead.
//
// It is a performance special case, not a correctness shortcut: the
// unit tests hold its output equal to the general decoder's on the same
// input, and any structural surprise falls back to an error rather than
// a guess.
func ScanTokenData(raw []byte) ([]uint32, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, "", nil
	}
	if !gjson.ValidBytes(raw) {
		return nil, "", fmt.Errorf("invalid token result")
	}

	resultID := gjson.GetBytes(raw, "resultId").String()

	arr := gjson.GetBytes(raw, "data")
	if !arr.Exists() {
		return nil, "", fmt.Errorf("token result has no data array")
	}
	if !arr.IsArray() {
		return nil, "", fmt.Errorf("token data is not an array")
	}

	data := make([]uint32, 0, 512)
	ok := true
	arr.ForEach(func(_, value gjson.Result) bool {
		if value.Type != gjson.Number {
			ok = false
			return false
		}
		data = append(data, uint32(value.Uint()))
		return true
	})
	if !ok {
		return nil, "", fmt.Errorf("non-numeric entry in token data")
	}
	return data, resultID, nil
}

// decodeTokenDataSlow is the general-purpose reference decoder the fast
// path is tested against.
func decodeTokenDataSlow(raw []byte) ([]uint32, string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, "", nil
	}
	var result struct {
		ResultID string   `json:"resultId"`
		Data     []uint32 `json:"data"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, "", err
	}
	out := result.Data
	if out == nil {
		out = []uint32{}
	}
	return out, result.ResultID, nil
}
