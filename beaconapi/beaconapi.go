// Package beaconapi shapes the beacon-API requests the sync-committee
// manager and verifier pipeline depend on, and parses the responses back
// into the byte shapes the core consumes. Per-client quirks (Lighthouse
// returning light-client updates as JSON, Nimbus moving paths) are absorbed
// by the Rewriter boundary before bytes enter the core.
package beaconapi

import (
	"encoding/hex"
	"fmt"

	"github.com/ethlc/lightproof/executor"
)

// HeadersRequest fetches a beacon header by block id (slot, root, "head").
func HeadersRequest(id string) *executor.DataRequest {
	return executor.NewRequest(executor.TypeBeaconAPI, "GET",
		fmt.Sprintf("eth/v1/beacon/headers/%s", id), nil, executor.EncodingJSON)
}

// BootstrapRequest fetches the light-client bootstrap for a trusted block
// root, as SSZ.
func BootstrapRequest(root [32]byte) *executor.DataRequest {
	return executor.NewRequest(executor.TypeBeaconAPI, "GET",
		fmt.Sprintf("eth/v1/beacon/light_client/bootstrap/0x%s", hex.EncodeToString(root[:])), nil, executor.EncodingSSZ)
}

// UpdatesRequest fetches count light-client updates starting at startPeriod,
// as the length-prefixed SSZ stream ParseUpdateStream decodes.
func UpdatesRequest(startPeriod uint32, count uint32) *executor.DataRequest {
	return executor.NewRequest(executor.TypeBeaconAPI, "GET",
		fmt.Sprintf("eth/v1/beacon/light_client/updates?start_period=%d&count=%d", startPeriod, count), nil, executor.EncodingSSZ)
}

// FinalityCheckpointsRequest fetches the head state's finality checkpoints.
func FinalityCheckpointsRequest() *executor.DataRequest {
	return executor.NewRequest(executor.TypeBeaconAPI, "GET",
		"eth/v1/beacon/states/head/finality_checkpoints", nil, executor.EncodingJSON)
}

// BlockRootRequest fetches the block root at a slot.
func BlockRootRequest(slot uint64) *executor.DataRequest {
	return executor.NewRequest(executor.TypeBeaconAPI, "GET",
		fmt.Sprintf("eth/v1/beacon/blocks/%d/root", slot), nil, executor.EncodingJSON)
}

// CheckpointzBlockRootRequest fetches the block root for a finality
// checkpoint slot from a checkpointz service, the out-of-band anchor the
// weak-subjectivity recovery path compares against.
func CheckpointzBlockRootRequest(slot uint64) *executor.DataRequest {
	return executor.NewRequest(executor.TypeCheckpointz, "GET",
		fmt.Sprintf("eth/v1/beacon/blocks/%d/root", slot), nil, executor.EncodingJSON)
}
