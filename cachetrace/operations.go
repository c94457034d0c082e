package cachetrace

import "fmt"

// Mode tells whether an operation returns its result directly or through a
// pending cache.Future.
type Mode int

const (
	Sync Mode = iota + 1
	Async
)

func (m Mode) String() string {
	switch m {
	case Sync:
		return "SYNC"
	case Async:
		return "ASYNC"
	default:
		return fmt.Sprintf("Mode(%d)", int(m))
	}
}

// Target tells whether an operation addresses one key or a collection.
type Target int

const (
	Single Target = iota + 1
	Batch
)

func (t Target) String() string {
	switch t {
	case Single:
		return "SINGLE"
	case Batch:
		return "BATCH"
	default:
		return fmt.Sprintf("Target(%d)", int(t))
	}
}

// Descriptor classifies an observable cache operation.
type Descriptor struct {
	Mode   Mode
	Target Target
}

// Operation binds a RemoteCache method name to its descriptor.
type Operation struct {
	Method string
	Descriptor
}

func (o Operation) String() string {
	return fmt.Sprintf("%s(%s,%s)", o.Method, o.Mode, o.Target)
}

var (
	syncSingle  = Descriptor{Mode: Sync, Target: Single}
	syncBatch   = Descriptor{Mode: Sync, Target: Batch}
	asyncSingle = Descriptor{Mode: Async, Target: Single}
	asyncBatch  = Descriptor{Mode: Async, Target: Batch}
)

// Call sites in TracedCache use these values directly.
var (
	opGet                = Operation{"Get", syncSingle}
	opGetOrDefault       = Operation{"GetOrDefault", syncSingle}
	opGetWithMetadata    = Operation{"GetWithMetadata", syncSingle}
	opGetAll             = Operation{"GetAll", syncBatch}
	opContainsKey        = Operation{"ContainsKey", syncSingle}
	opContainsValue      = Operation{"ContainsValue", syncSingle}
	opPut                = Operation{"Put", syncSingle}
	opPutIfAbsent        = Operation{"PutIfAbsent", syncSingle}
	opPutAll             = Operation{"PutAll", syncBatch}
	opReplace            = Operation{"Replace", syncSingle}
	opReplaceIfEquals    = Operation{"ReplaceIfEquals", syncSingle}
	opReplaceWithVersion = Operation{"ReplaceWithVersion", syncSingle}
	opReplaceAll         = Operation{"ReplaceAll", syncSingle}
	opRemove             = Operation{"Remove", syncSingle}
	opRemoveIfEquals     = Operation{"RemoveIfEquals", syncSingle}
	opRemoveWithVersion  = Operation{"RemoveWithVersion", syncSingle}
	opCompute            = Operation{"Compute", syncSingle}
	opComputeIfAbsent    = Operation{"ComputeIfAbsent", syncSingle}
	opComputeIfPresent   = Operation{"ComputeIfPresent", syncSingle}
	opMerge              = Operation{"Merge", syncSingle}
	opSize               = Operation{"Size", syncSingle}
	opIsEmpty            = Operation{"IsEmpty", syncSingle}

	opGetAsync                = Operation{"GetAsync", asyncSingle}
	opGetWithMetadataAsync    = Operation{"GetWithMetadataAsync", asyncSingle}
	opGetAllAsync             = Operation{"GetAllAsync", asyncBatch}
	opContainsKeyAsync        = Operation{"ContainsKeyAsync", asyncSingle}
	opPutAsync                = Operation{"PutAsync", asyncSingle}
	opPutIfAbsentAsync        = Operation{"PutIfAbsentAsync", asyncSingle}
	opPutAllAsync             = Operation{"PutAllAsync", asyncBatch}
	opReplaceAsync            = Operation{"ReplaceAsync", asyncSingle}
	opReplaceIfEqualsAsync    = Operation{"ReplaceIfEqualsAsync", asyncSingle}
	opReplaceWithVersionAsync = Operation{"ReplaceWithVersionAsync", asyncSingle}
	opRemoveAsync             = Operation{"RemoveAsync", asyncSingle}
	opRemoveIfEqualsAsync     = Operation{"RemoveIfEqualsAsync", asyncSingle}
	opRemoveWithVersionAsync  = Operation{"RemoveWithVersionAsync", asyncSingle}
	opComputeAsync            = Operation{"ComputeAsync", asyncSingle}
	opComputeIfAbsentAsync    = Operation{"ComputeIfAbsentAsync", asyncSingle}
	opComputeIfPresentAsync   = Operation{"ComputeIfPresentAsync", asyncSingle}
	opMergeAsync              = Operation{"MergeAsync", asyncSingle}
	opSizeAsync               = Operation{"SizeAsync", asyncSingle}
)

var operations = []Operation{
	opGet, opGetOrDefault, opGetWithMetadata, opGetAll, opContainsKey, opContainsValue,
	opPut, opPutIfAbsent, opPutAll, opReplace, opReplaceIfEquals, opReplaceWithVersion,
	opReplaceAll, opRemove, opRemoveIfEquals, opRemoveWithVersion,
	opCompute, opComputeIfAbsent, opComputeIfPresent, opMerge, opSize, opIsEmpty,

	opGetAsync, opGetWithMetadataAsync, opGetAllAsync, opContainsKeyAsync,
	opPutAsync, opPutIfAbsentAsync, opPutAllAsync, opReplaceAsync, opReplaceIfEqualsAsync,
	opReplaceWithVersionAsync, opRemoveAsync, opRemoveIfEqualsAsync, opRemoveWithVersionAsync,
	opComputeAsync, opComputeIfAbsentAsync, opComputeIfPresentAsync, opMergeAsync, opSizeAsync,
}

// untagged lists the RemoteCache methods that are forwarded without
// telemetry.
var untagged = []string{
	"Name", "ClusterName", "Keys", "Values", "Entries",
	"Clear", "ClearAsync", "Ping", "Statistics", "Close",
}

// Operations returns the observable operations.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// Lookup returns the operation for a RemoteCache method name.
func Lookup(method string) (Operation, bool) {
	for _, op := range operations {
		if op.Method == method {
			return op, true
		}
	}
	return Operation{}, false
}
