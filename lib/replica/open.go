package replica

import (
	"fmt"

	"github.com/ValentinKolb/dPrim/lib/cas"
	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/ValentinKolb/dPrim/lib/protocol"
	"github.com/ValentinKolb/dPrim/lib/replica/mpvalue"
	"github.com/ValentinKolb/dPrim/lib/replica/raftvalue"
	"github.com/lni/dragonboat/v4/logger"
)

var log = logger.GetLogger("replica")

// Backend is a set of replicated registers addressed by key.
type Backend interface {
	Value(key string) cas.Handle[[]byte]
	Close() error
}

// Deps holds what a backend needs beyond its descriptor.
// NodeHost and ShardID are only used by the raft family.
type Deps struct {
	NodeHost raftvalue.NodeHost
	ShardID  uint64
}

// Open creates the backend described by desc.
func Open(desc protocol.Descriptor, deps Deps) (Backend, error) {
	switch d := desc.(type) {
	case protocol.RaftDescriptor:
		return openRaft(d, deps)
	case *protocol.RaftDescriptor:
		if d == nil {
			break
		}
		return openRaft(*d, deps)
	case protocol.MultiPrimaryDescriptor:
		return openMultiPrimary(d), nil
	case *protocol.MultiPrimaryDescriptor:
		if d == nil {
			break
		}
		return openMultiPrimary(*d), nil
	}
	return nil, primitive.NewError(primitive.RetCInvalidConfiguration, fmt.Sprintf("unsupported protocol descriptor: %T", desc))
}

func openRaft(d protocol.RaftDescriptor, deps Deps) (Backend, error) {
	if deps.NodeHost == nil {
		return nil, primitive.NewError(primitive.RetCInvalidConfiguration, "raft protocol requires a node host")
	}
	log.Infof("opening raft backend on shard %d (%s)", deps.ShardID, d)
	return raftvalue.NewStore(deps.NodeHost, deps.ShardID, d), nil
}

func openMultiPrimary(d protocol.MultiPrimaryDescriptor) Backend {
	log.Infof("opening multi-primary backend (%s)", d)
	return mpvalue.NewGroup(d)
}

// Long opens key on b as an atomic long.
func Long(b Backend, key string, opts ...cas.Option) *cas.Long {
	return cas.NewLong(cas.NewTyped[int64](b.Value(key), cas.Int64Codec{}), opts...)
}
