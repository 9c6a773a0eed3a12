package beaconapi

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/ethlc/lightproof/bytesutil"
)

// BlockRoot parses a `blocks/{slot}/root` JSON body into its 32-byte root.
func BlockRoot(body []byte) ([32]byte, error) {
	var resp struct {
		Data struct {
			Root string `json:"root"`
		} `json:"data"`
	}
	var root [32]byte
	if err := json.Unmarshal(body, &resp); err != nil {
		return root, errors.Wrap(err, "beaconapi: block root response")
	}
	b32, err := bytesutil.HexToBytes32(resp.Data.Root)
	if err != nil {
		return root, errors.Wrap(err, "beaconapi: block root response")
	}
	return [32]byte(b32), nil
}

// HeaderSummary is the subset of a `headers/{id}` response the manager
// needs: the slot and the header root.
type HeaderSummary struct {
	Slot uint64
	Root [32]byte
}

// Header parses a `headers/{id}` JSON body.
func Header(body []byte) (HeaderSummary, error) {
	var resp struct {
		Data struct {
			Root   string `json:"root"`
			Header struct {
				Message struct {
					Slot string `json:"slot"`
				} `json:"message"`
			} `json:"header"`
		} `json:"data"`
	}
	var out HeaderSummary
	if err := json.Unmarshal(body, &resp); err != nil {
		return out, errors.Wrap(err, "beaconapi: header response")
	}
	slot, err := strconv.ParseUint(strings.TrimSpace(resp.Data.Header.Message.Slot), 10, 64)
	if err != nil {
		return out, errors.Wrap(err, "beaconapi: header slot")
	}
	root, err := bytesutil.HexToBytes32(resp.Data.Root)
	if err != nil {
		return out, errors.Wrap(err, "beaconapi: header root")
	}
	out.Slot = slot
	out.Root = [32]byte(root)
	return out, nil
}

// FinalityCheckpoints parses a `finality_checkpoints` JSON body into the
// finalized checkpoint's epoch and root.
func FinalityCheckpoints(body []byte) (epoch uint64, root [32]byte, err error) {
	var resp struct {
		Data struct {
			Finalized struct {
				Epoch string `json:"epoch"`
				Root  string `json:"root"`
			} `json:"finalized"`
		} `json:"data"`
	}
	if err = json.Unmarshal(body, &resp); err != nil {
		return 0, root, errors.Wrap(err, "beaconapi: finality checkpoints response")
	}
	epoch, err = strconv.ParseUint(strings.TrimSpace(resp.Data.Finalized.Epoch), 10, 64)
	if err != nil {
		return 0, root, errors.Wrap(err, "beaconapi: finality checkpoints epoch")
	}
	b32, err := bytesutil.HexToBytes32(resp.Data.Finalized.Root)
	if err != nil {
		return 0, root, errors.Wrap(err, "beaconapi: finality checkpoints root")
	}
	return epoch, [32]byte(b32), nil
}
