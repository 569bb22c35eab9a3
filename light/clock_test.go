package light

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAnchoredClock(t *testing.T) {
	require := require.New(t)

	local := time.Unix(0, 0)
	clock := newAnchoredClock(1000, func() time.Time { return local })
	require.EqualValues(1000, clock.Now())

	local = local.Add(90 * time.Second)
	require.EqualValues(1090, clock.Now(), "clock should advance with local time")

	clock.Anchor(1200)
	require.EqualValues(1200, clock.Now(), "clock should follow a newer anchor")

	clock.Anchor(1100)
	require.EqualValues(1200, clock.Now(), "clock must not go backward")

	local = local.Add(150 * time.Second)
	require.EqualValues(1250, clock.Now())
}
