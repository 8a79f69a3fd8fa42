package distexec_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jdziat/distexec"
	"github.com/jdziat/distexec/pkg/clusterstate"
	"github.com/jdziat/distexec/pkg/config"
	"github.com/jdziat/distexec/pkg/transport"
)

var stringColumn = []distexec.DataType{distexec.TypeString}

func directPlan(nodes ...distexec.NodeID) *distexec.Plan {
	f := &distexec.Fragment{
		ID:          1,
		Nodes:       nodes,
		Downstreams: []distexec.Downstream{{FragmentID: 0, Direct: true}},
	}
	return distexec.NewPlan(&distexec.MergeFragment{ID: 0, InputTypes: stringColumn}, f)
}

func newMesh() *transport.Mesh {
	mesh := transport.NewMesh()
	mesh.Join("n1", transport.HandlerFuncs{Execute: transport.DirectRows(stringColumn, distexec.Bucket{{"a"}})})
	mesh.Join("n2", transport.HandlerFuncs{Execute: transport.DirectRows(stringColumn, distexec.Bucket{{"b"}, {"c"}})})
	return mesh
}

func newExecutor(t *testing.T, tr distexec.Transport, opts ...distexec.Option) *distexec.Executor {
	t.Helper()
	exec, err := distexec.New(tr, opts...)
	require.NoError(t, err)
	t.Cleanup(exec.Shutdown)
	return exec
}

func closeExecutor(t *testing.T, exec *distexec.Executor) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, exec.Close(ctx))
}

func writeRequest(node distexec.NodeID) *distexec.ShardRequest {
	return &distexec.ShardRequest{
		Index:   "users",
		ShardID: 3,
		Node:    node,
		Items:   []distexec.ShardItem{{ID: "1"}, {ID: "2"}},
	}
}

type outcome struct {
	resp *distexec.ShardResponse
	err  error
}

func listen() (distexec.RetryListener, <-chan outcome) {
	ch := make(chan outcome, 2)
	return func(resp *distexec.ShardResponse, err error) {
		ch <- outcome{resp, err}
	}, ch
}

func receive(t *testing.T, ch <-chan outcome) outcome {
	t.Helper()
	select {
	case o := <-ch:
		return o
	case <-time.After(5 * time.Second):
		t.Fatal("listener was not invoked")
		return outcome{}
	}
}

func TestNew_RequiresTransport(t *testing.T) {
	_, err := distexec.New(nil)
	assert.ErrorIs(t, err, distexec.ErrNilTransport)
}

func TestExecutor_DispatchMergesDirectResponses(t *testing.T) {
	mesh := newMesh()
	exec := newExecutor(t, mesh, distexec.WithNode("coordinator"))
	assert.Equal(t, distexec.NodeID("coordinator"), exec.Node())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := exec.Dispatch(ctx, directPlan("n1", "n2")).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, distexec.Bucket{{"a"}, {"b"}, {"c"}}, r.Rows)
	assert.Equal(t, 3, r.RowCount())

	closeExecutor(t, exec)
	assert.Equal(t, 1, mesh.Calls("n1").Close)
	assert.Equal(t, 1, mesh.Calls("n2").Close)
}

func TestExecutor_DispatchEmitsEvents(t *testing.T) {
	exec := newExecutor(t, newMesh())
	events := exec.Events()
	defer exec.Unsubscribe(events)

	ctx := context.Background()
	_, err := exec.Dispatch(ctx, directPlan("n1")).Wait(ctx)
	require.NoError(t, err)

	var finished *distexec.JobFinished
	require.Eventually(t, func() bool {
		select {
		case e := <-events:
			if jf, ok := e.(*distexec.JobFinished); ok {
				finished = jf
				return true
			}
		default:
		}
		return false
	}, 5*time.Second, 10*time.Millisecond)
	assert.NoError(t, finished.Error)
}

func TestExecutor_LocalExecutor(t *testing.T) {
	local := distexec.LocalExecutorFunc(transport.DirectRows(stringColumn, distexec.Bucket{{"local"}}))
	exec := newExecutor(t, transport.NewMesh(), distexec.WithLocalExecutor(local))

	ctx := context.Background()
	r, err := exec.Dispatch(ctx, directPlan(distexec.LocalNodeID)).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, distexec.Bucket{{"local"}}, r.Rows)
}

func TestExecutor_JobLogDSN(t *testing.T) {
	exec := newExecutor(t, newMesh(), distexec.WithJobLogDSN(":memory:"))
	require.NotNil(t, exec.JobLog())

	ctx := context.Background()
	plan := directPlan("n1", "n2")
	_, err := exec.Dispatch(ctx, plan).Wait(ctx)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		entry, err := exec.JobLog().GetJob(ctx, plan.JobID)
		return err == nil && entry != nil && !entry.Running()
	}, 5*time.Second, 10*time.Millisecond)

	entry, err := exec.JobLog().GetJob(ctx, plan.JobID)
	require.NoError(t, err)
	assert.Equal(t, 3, entry.RowCount)
	assert.Equal(t, 2, entry.NodeCount)
	assert.True(t, entry.DirectMode)

	closeExecutor(t, exec)
}

func TestExecutor_WriteRetriesTransportFailure(t *testing.T) {
	mesh := transport.NewMesh()
	var attempts atomic.Int32
	mesh.Join("n1", transport.HandlerFuncs{Shard: func(ctx context.Context, req *distexec.ShardRequest) (*distexec.ShardResponse, error) {
		if attempts.Add(1) == 1 {
			return nil, errors.New("connection reset")
		}
		return &distexec.ShardResponse{ShardID: req.ShardID, Locations: []int{0, 1}}, nil
	}})
	exec := newExecutor(t, mesh, distexec.WithRetryConfig(distexec.RetryConfig{
		DelayStep: 5 * time.Millisecond,
		MaxDelay:  20 * time.Millisecond,
	}))

	l, ch := listen()
	exec.Write(context.Background(), writeRequest("n1"), l)

	o := receive(t, ch)
	require.NoError(t, o.err)
	assert.Equal(t, 3, o.resp.ShardID)
	assert.Equal(t, int32(2), attempts.Load())
	assert.Equal(t, 2, mesh.Calls("n1").Shard)

	closeExecutor(t, exec)
}

func TestExecutor_RetryBlocking(t *testing.T) {
	exec := newExecutor(t, newMesh())

	l, ch := listen()
	exec.Retry(context.Background(), writeRequest("n2"), distexec.Blocking, l)

	o := receive(t, ch)
	require.NoError(t, o.err)
	assert.Equal(t, []int{0, 1}, o.resp.Locations)

	stats := exec.RetryStats("n2")
	assert.Zero(t, stats.ActiveWriters)
	assert.Zero(t, stats.PendingRetries)
	require.NoError(t, exec.RemoveNode("n2"))
}

func TestExecutor_NoRetryErrorIsFinal(t *testing.T) {
	mesh := transport.NewMesh()
	mesh.Join("n1", transport.HandlerFuncs{Shard: func(ctx context.Context, req *distexec.ShardRequest) (*distexec.ShardResponse, error) {
		return nil, distexec.NoRetry(errors.New("mapping conflict"))
	}})
	exec := newExecutor(t, mesh)

	l, ch := listen()
	exec.Write(context.Background(), writeRequest("n1"), l)

	o := receive(t, ch)
	require.Error(t, o.err)
	assert.False(t, distexec.IsRetryable(o.err))
	assert.Equal(t, 1, mesh.Calls("n1").Shard)
}

func TestExecutor_WriteWithoutShardExecutor(t *testing.T) {
	tr := struct{ distexec.Transport }{newMesh()}
	exec := newExecutor(t, tr)

	l, ch := listen()
	exec.Write(context.Background(), writeRequest("n1"), l)
	assert.ErrorIs(t, receive(t, ch).err, distexec.ErrNoShardExecutor)

	exec.Retry(context.Background(), writeRequest("n1"), distexec.Deferred, l)
	assert.ErrorIs(t, receive(t, ch).err, distexec.ErrNoShardExecutor)
}

func TestExecutor_WithShardExecutorOverridesTransport(t *testing.T) {
	var calls atomic.Int32
	shards := distexec.ShardExecutorFunc(func(ctx context.Context, req *distexec.ShardRequest) (*distexec.ShardResponse, error) {
		calls.Add(1)
		return &distexec.ShardResponse{ShardID: req.ShardID}, nil
	})
	mesh := newMesh()
	exec := newExecutor(t, mesh, distexec.WithShardExecutor(shards))

	l, ch := listen()
	exec.Write(context.Background(), writeRequest("n1"), l)
	require.NoError(t, receive(t, ch).err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, mesh.Calls("n1").Shard)
}

func TestExecutor_ShutdownFailsLaterWrites(t *testing.T) {
	exec, err := distexec.New(newMesh())
	require.NoError(t, err)
	exec.Shutdown()

	l, ch := listen()
	exec.Retry(context.Background(), writeRequest("n1"), distexec.Deferred, l)
	assert.ErrorIs(t, receive(t, ch).err, distexec.ErrCoordinatorClosed)

	// Close after Shutdown is a no-op.
	assert.NoError(t, exec.Close(context.Background()))
}

func TestExecutor_ClusterStateTracksTables(t *testing.T) {
	exec := newExecutor(t, newMesh())
	users := clusterstate.TableIdent{Name: "users"}
	state := clusterstate.NewState().WithTable(clusterstate.Table{Ident: users})

	closed := exec.ClusterState().OnCloseTable(state, users)
	table, ok := closed.Table(users)
	require.True(t, ok)
	assert.True(t, table.Closed)

	reopened := exec.ClusterState().OnOpenTable(closed, users)
	table, _ = reopened.Table(users)
	assert.False(t, table.Closed)
}

func TestExecutor_WithoutClusterStateTables(t *testing.T) {
	exec := newExecutor(t, newMesh(), distexec.WithoutClusterStateTables())
	users := clusterstate.TableIdent{Name: "users"}
	state := clusterstate.NewState().WithTable(clusterstate.Table{Ident: users})

	assert.Equal(t, state, exec.ClusterState().OnCloseTable(state, users))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Node = "n0"
	cfg.Logging.Level = "error"
	cfg.JobLog.DSN = ":memory:"
	cfg.Metrics.Enabled = true
	cfg.Metrics.Namespace = "test"

	exec, err := distexec.NewFromConfig(cfg, newMesh())
	require.NoError(t, err)
	assert.Equal(t, distexec.NodeID("n0"), exec.Node())
	assert.NotNil(t, exec.JobLog())
	assert.NotNil(t, exec.Metrics())

	ctx := context.Background()
	r, err := exec.Dispatch(ctx, directPlan("n1")).Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, distexec.Bucket{{"a"}}, r.Rows)

	closeExecutor(t, exec)
}

func TestNewFromConfig_Invalid(t *testing.T) {
	cfg := config.Default()
	cfg.Registry.SweepSchedule = "not a schedule"

	_, err := distexec.NewFromConfig(cfg, newMesh())
	assert.Error(t, err)
}
