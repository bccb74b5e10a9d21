package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// ABI surface of the Stylus cache manager and the ArbWasmCache precompile.
// Only the events and views the monitor consumes are declared.
const cacheManagerABIJSON = `[
	{"type":"event","name":"InsertBid","inputs":[
		{"name":"codehash","type":"bytes32","indexed":true},
		{"name":"program","type":"address","indexed":false},
		{"name":"bid","type":"uint192","indexed":false},
		{"name":"size","type":"uint64","indexed":false}]},
	{"type":"event","name":"DeleteBid","inputs":[
		{"name":"codehash","type":"bytes32","indexed":true},
		{"name":"bid","type":"uint192","indexed":false},
		{"name":"size","type":"uint64","indexed":false}]},
	{"type":"event","name":"SetCacheSize","inputs":[
		{"name":"size","type":"uint64","indexed":false}]},
	{"type":"event","name":"SetDecayRate","inputs":[
		{"name":"decay","type":"uint64","indexed":false}]},
	{"type":"event","name":"Pause","inputs":[]},
	{"type":"event","name":"Unpause","inputs":[]},
	{"type":"function","name":"getMinBid","stateMutability":"view","inputs":[
		{"name":"size","type":"uint64"}],"outputs":[
		{"name":"","type":"uint192"}]},
	{"type":"function","name":"getBid","stateMutability":"view","inputs":[
		{"name":"codehash","type":"bytes32"}],"outputs":[
		{"name":"","type":"uint192"}]},
	{"type":"function","name":"cacheSize","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"uint64"}]},
	{"type":"function","name":"queueSize","stateMutability":"view","inputs":[],"outputs":[
		{"name":"","type":"uint64"}]}
]`

const arbWasmCacheABIJSON = `[
	{"type":"function","name":"codehashIsCached","stateMutability":"view","inputs":[
		{"name":"codehash","type":"bytes32"}],"outputs":[
		{"name":"","type":"bool"}]}
]`

var (
	cacheManagerABI = mustParseABI(cacheManagerABIJSON)
	arbWasmCacheABI = mustParseABI(arbWasmCacheABIJSON)
)

func mustParseABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic("chain: invalid embedded ABI: " + err.Error())
	}
	return parsed
}
