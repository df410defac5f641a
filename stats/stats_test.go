package stats_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mabrarov/echo-server-go/errcode"
	"github.com/mabrarov/echo-server-go/stats"
)

func TestSetActiveCountTracksMax(t *testing.T) {
	c := stats.New()
	c.SetActiveCount(3)
	c.SetActiveCount(1)
	snp := c.Snapshot()
	require.EqualValues(t, 1, snp.Active)
	require.EqualValues(t, 3, snp.MaxActive)
}

func TestSessionAcceptedOnlyCountsSuccess(t *testing.T) {
	c := stats.New()
	c.SessionAccepted(nil)
	c.SessionAccepted(errcode.NoMemory.Error(nil))
	require.EqualValues(t, 1, c.Snapshot().TotalAccepted)
}

func TestSessionStoppedClassifiesByCode(t *testing.T) {
	c := stats.New()
	c.SessionStopped(errcode.OperationAborted.Error(nil))
	c.SessionStopped(errcode.OutOfWork.Error(nil))
	c.SessionStopped(errcode.InactivityTimeout.Error(nil))
	c.SessionStopped(errcode.UnknownError.Error(nil))

	snp := c.Snapshot()
	require.EqualValues(t, 1, snp.ActiveShutdowned)
	require.EqualValues(t, 1, snp.OutOfWork)
	require.EqualValues(t, 1, snp.TimedOut)
	require.EqualValues(t, 1, snp.ErrorStopped)
}

func TestResetZeroesCounters(t *testing.T) {
	c := stats.New()
	c.SetActiveCount(5)
	c.SessionAccepted(nil)
	c.Reset()

	snp := c.Snapshot()
	require.Zero(t, snp.Active)
	require.Zero(t, snp.MaxActive)
	require.Zero(t, snp.TotalAccepted)
}

func TestSnapshotStringRendersSaturation(t *testing.T) {
	snp := stats.Snapshot{Active: 2, TotalAccepted: 18446744073709551615}
	require.Contains(t, snp.String(), "active=2")
	require.Contains(t, snp.String(), "total_accepted=>18446744073709551615")
}
