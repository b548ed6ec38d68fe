package protocol

import (
	"testing"
	"time"

	"github.com/ValentinKolb/dPrim/lib/primitive"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

var (
	allConsistency = []primitive.Consistency{
		primitive.ConsistencyLinearizable,
		primitive.ConsistencySequential,
		primitive.ConsistencyEventual,
	}
	allReplication = []primitive.Replication{
		primitive.ReplicationSynchronous,
		primitive.ReplicationAsynchronous,
	}
)

func testTuning() primitive.RetryTuning {
	return primitive.RetryTuning{
		Recovery:   primitive.RecoveryClose,
		MaxRetries: 3,
		RetryDelay: 250 * time.Millisecond,
		Backups:    2,
	}
}

func TestSelectDecisionTable(t *testing.T) {
	tests := []struct {
		name        string
		consistency primitive.Consistency
		persistence primitive.Persistence
		want        Descriptor
	}{
		{
			name:        "linearizable persistent",
			consistency: primitive.ConsistencyLinearizable,
			persistence: primitive.PersistencePersistent,
			want: RaftDescriptor{
				MinTimeout:            5 * time.Second,
				MaxTimeout:            30 * time.Second,
				ReadConsistency:       ReadLinearizableLease,
				CommunicationStrategy: CommunicationLeader,
				Recovery:              primitive.RecoveryClose,
				MaxRetries:            3,
				RetryDelay:            250 * time.Millisecond,
			},
		},
		{
			name:        "linearizable ephemeral",
			consistency: primitive.ConsistencyLinearizable,
			persistence: primitive.PersistenceEphemeral,
			want: MultiPrimaryDescriptor{
				Consistency: primitive.ConsistencyLinearizable,
				Replication: primitive.ReplicationSynchronous,
				Recovery:    primitive.RecoveryClose,
				Backups:     2,
				MaxRetries:  3,
				RetryDelay:  250 * time.Millisecond,
			},
		},
		{
			name:        "sequential persistent",
			consistency: primitive.ConsistencySequential,
			persistence: primitive.PersistencePersistent,
			want: RaftDescriptor{
				MinTimeout:            5 * time.Second,
				MaxTimeout:            30 * time.Second,
				ReadConsistency:       ReadSequential,
				CommunicationStrategy: CommunicationFollowers,
				Recovery:              primitive.RecoveryClose,
				MaxRetries:            3,
				RetryDelay:            250 * time.Millisecond,
			},
		},
		{
			name:        "sequential ephemeral",
			consistency: primitive.ConsistencySequential,
			persistence: primitive.PersistenceEphemeral,
			want: MultiPrimaryDescriptor{
				Consistency: primitive.ConsistencySequential,
				Replication: primitive.ReplicationSynchronous,
				Recovery:    primitive.RecoveryClose,
				Backups:     2,
				MaxRetries:  3,
				RetryDelay:  250 * time.Millisecond,
			},
		},
		{
			name:        "eventual persistent",
			consistency: primitive.ConsistencyEventual,
			persistence: primitive.PersistencePersistent,
			want: RaftDescriptor{
				MinTimeout:            5 * time.Second,
				MaxTimeout:            30 * time.Second,
				ReadConsistency:       ReadSequential,
				CommunicationStrategy: CommunicationFollowers,
				Recovery:              primitive.RecoveryClose,
				MaxRetries:            3,
				RetryDelay:            250 * time.Millisecond,
			},
		},
		{
			name:        "eventual ephemeral",
			consistency: primitive.ConsistencyEventual,
			persistence: primitive.PersistenceEphemeral,
			want: MultiPrimaryDescriptor{
				Consistency: primitive.ConsistencySequential,
				Replication: primitive.ReplicationSynchronous,
				Recovery:    primitive.RecoveryClose,
				Backups:     2,
				MaxRetries:  3,
				RetryDelay:  250 * time.Millisecond,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Select(primitive.Requirement{
				Consistency: tt.consistency,
				Persistence: tt.persistence,
				Replication: primitive.ReplicationSynchronous,
			}, testTuning())
			require.NoError(t, err)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("descriptor mismatch (-want +got):\n%s", diff)
			}
			require.Equal(t, tt.want.Family(), got.Family())
		})
	}
}

func TestSelectPersistentIsAlwaysRaft(t *testing.T) {
	for _, c := range allConsistency {
		for _, r := range allReplication {
			d, err := Select(primitive.Requirement{
				Consistency: c,
				Persistence: primitive.PersistencePersistent,
				Replication: r,
			}, testTuning())
			require.NoError(t, err)

			raft, ok := d.(RaftDescriptor)
			require.Truef(t, ok, "%s/%s resolved to %s", c, r, d)

			if c == primitive.ConsistencyLinearizable {
				require.Equal(t, CommunicationLeader, raft.CommunicationStrategy)
				require.False(t, raft.StaleReads())
			} else {
				require.Equal(t, CommunicationFollowers, raft.CommunicationStrategy)
				require.True(t, raft.StaleReads())
			}
		}
	}
}

func TestSelectEphemeralKeepsReplication(t *testing.T) {
	d, err := Select(primitive.Requirement{
		Consistency: primitive.ConsistencyLinearizable,
		Persistence: primitive.PersistenceEphemeral,
		Replication: primitive.ReplicationAsynchronous,
	}, testTuning())
	require.NoError(t, err)
	require.Equal(t, primitive.ReplicationAsynchronous, d.(MultiPrimaryDescriptor).Replication)
	require.Equal(t, testTuning(), d.Tuning())
}

func TestSelectIsIdempotent(t *testing.T) {
	s := NewSelector(DefaultPolicy())
	for _, c := range allConsistency {
		for _, p := range []primitive.Persistence{primitive.PersistenceEphemeral, primitive.PersistencePersistent} {
			req := primitive.Requirement{Consistency: c, Persistence: p, Replication: primitive.ReplicationSynchronous}
			first, err := s.Select(req, testTuning())
			require.NoError(t, err)
			second, err := s.Select(req, testTuning())
			require.NoError(t, err)
			require.True(t, cmp.Equal(first, second))
		}
	}
}

func TestSelectRejectsMalformedInput(t *testing.T) {
	valid := primitive.Requirement{
		Consistency: primitive.ConsistencySequential,
		Persistence: primitive.PersistencePersistent,
		Replication: primitive.ReplicationSynchronous,
	}

	tests := []struct {
		name   string
		mutate func(*primitive.Requirement, *primitive.RetryTuning)
	}{
		{"zero consistency", func(r *primitive.Requirement, _ *primitive.RetryTuning) { r.Consistency = 0 }},
		{"unknown consistency", func(r *primitive.Requirement, _ *primitive.RetryTuning) { r.Consistency = 9 }},
		{"unknown persistence", func(r *primitive.Requirement, _ *primitive.RetryTuning) { r.Persistence = 7 }},
		{"unknown replication", func(r *primitive.Requirement, _ *primitive.RetryTuning) { r.Replication = 0 }},
		{"unknown recovery", func(_ *primitive.Requirement, tu *primitive.RetryTuning) { tu.Recovery = 0 }},
		{"negative retries", func(_ *primitive.Requirement, tu *primitive.RetryTuning) { tu.MaxRetries = -1 }},
		{"negative delay", func(_ *primitive.Requirement, tu *primitive.RetryTuning) { tu.RetryDelay = -time.Second }},
		{"negative backups", func(_ *primitive.Requirement, tu *primitive.RetryTuning) { tu.Backups = -2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, tuning := valid, testTuning()
			tt.mutate(&req, &tuning)

			d, err := Select(req, tuning)
			require.Nil(t, d)
			require.Error(t, err)
			require.True(t, primitive.IsConfigurationError(err))
		})
	}
}

func TestSelectRejectsInvalidPolicy(t *testing.T) {
	req := primitive.TypeAtomicLong.Defaults

	_, err := NewSelector(Policy{MinTimeout: 0, MaxTimeout: time.Second}).Select(req, testTuning())
	require.True(t, primitive.IsConfigurationError(err))

	_, err = NewSelector(Policy{MinTimeout: 2 * time.Second, MaxTimeout: time.Second}).Select(req, testTuning())
	require.True(t, primitive.IsConfigurationError(err))
}

func TestSelectUsesPolicyBounds(t *testing.T) {
	policy := Policy{MinTimeout: 10 * time.Millisecond, MaxTimeout: 50 * time.Millisecond}
	d, err := NewSelector(policy).Select(primitive.TypeAtomicLong.Defaults, testTuning())
	require.NoError(t, err)

	raft := d.(RaftDescriptor)
	require.Equal(t, 10*time.Millisecond, raft.MinTimeout)
	require.Equal(t, 50*time.Millisecond, raft.MaxTimeout)
}
