package availability_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/meeting-engine/availability"
	"github.com/warp/meeting-engine/meeting"
)

func date(s string) meeting.Date    { return meeting.MustParseDate(s) }
func at(s string) meeting.TimeOfDay { return meeting.MustParseTimeOfDay(s) }

func janeWithSlot() meeting.Employee {
	return meeting.Employee{
		ID:   "7",
		Name: "Jane Doe",
		UnavailableSlots: []meeting.UnavailableSlot{
			{Date: date("2024-03-01"), Start: at("10:00"), End: at("11:00"), Reason: "Dentist"},
		},
	}
}

// =============================================================================
// INDEX
// =============================================================================

func TestIndex_RangeExpansionInclusive(t *testing.T) {
	// GIVEN: a range 2024-01-01..2024-01-03
	ix := availability.Build([]meeting.Employee{{
		Name: "Bob Ray",
		UnavailableRanges: []meeting.UnavailableRange{
			{Start: date("2024-01-01"), End: date("2024-01-03"), Reason: "Vacation"},
		},
	}})

	// THEN: every date in the range is blocked at any time, the next is not
	for _, d := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		for _, tm := range []string{"00:00", "09:30", "23:59"} {
			assert.True(t, ix.IsUnavailable("Bob Ray", date(d), at(tm)), "%s %s", d, tm)
		}
		assert.True(t, ix.IsUnavailable("Bob Ray", date(d), meeting.NoTime))
	}
	assert.False(t, ix.IsUnavailable("Bob Ray", date("2024-01-04"), at("09:30")))
	assert.False(t, ix.IsUnavailable("Bob Ray", date("2023-12-31"), at("09:30")))

	reason, ok := ix.ReasonFor("Bob Ray", date("2024-01-02"), at("12:00"))
	require.True(t, ok)
	assert.Equal(t, "Vacation", reason.Reason)
	assert.True(t, reason.AllDay)
	assert.True(t, reason.FromRange)
}

func TestIndex_SlotBoundariesInclusive(t *testing.T) {
	ix := availability.Build([]meeting.Employee{janeWithSlot()})

	assert.True(t, ix.IsUnavailable("Jane Doe", date("2024-03-01"), at("10:00")))
	assert.True(t, ix.IsUnavailable("Jane Doe", date("2024-03-01"), at("10:30")))
	assert.True(t, ix.IsUnavailable("Jane Doe", date("2024-03-01"), at("11:00")))
	assert.False(t, ix.IsUnavailable("Jane Doe", date("2024-03-01"), at("11:01")))
	assert.False(t, ix.IsUnavailable("Jane Doe", date("2024-03-01"), at("09:59")))
	assert.False(t, ix.IsUnavailable("Jane Doe", date("2024-03-02"), at("10:30")))
}

func TestIndex_NameNormalization(t *testing.T) {
	ix := availability.Build([]meeting.Employee{janeWithSlot()})
	assert.True(t, ix.IsUnavailable("  jane   DOE ", date("2024-03-01"), at("10:30")))
	assert.False(t, ix.IsUnavailable("John Doe", date("2024-03-01"), at("10:30")))
}

func TestIndex_SlotWithoutBoundsIsAllDay(t *testing.T) {
	ix := availability.Build([]meeting.Employee{{
		Name:             "Amy Lee",
		UnavailableSlots: []meeting.UnavailableSlot{{Date: date("2024-05-05"), Reason: "Reserve duty"}},
	}})
	assert.True(t, ix.IsUnavailable("Amy Lee", date("2024-05-05"), at("07:00")))
	assert.True(t, ix.IsUnavailable("Amy Lee", date("2024-05-05"), at("19:00")))
}

func TestIndex_PrefersAllDayReason(t *testing.T) {
	emp := janeWithSlot()
	emp.UnavailableRanges = []meeting.UnavailableRange{{Start: date("2024-03-01"), End: date("2024-03-01"), Reason: "Sick"}}
	ix := availability.Build([]meeting.Employee{emp})

	reason, ok := ix.ReasonFor("Jane Doe", date("2024-03-01"), at("10:30"))
	require.True(t, ok)
	assert.Equal(t, "Sick", reason.Reason)
	assert.Len(t, ix.EntriesOn("Jane Doe", date("2024-03-01")), 2)
}

func TestIndex_InvalidRangeSkipped(t *testing.T) {
	ix := availability.Build([]meeting.Employee{{
		Name:              "Amy Lee",
		UnavailableRanges: []meeting.UnavailableRange{{Start: date("2024-05-05"), End: date("2024-05-01")}},
	}, {Name: ""}})
	assert.False(t, ix.IsUnavailable("Amy Lee", date("2024-05-03"), at("10:00")))
	assert.Equal(t, 1, ix.Employees())
}

// =============================================================================
// EVALUATOR & HOLDER
// =============================================================================

func TestEvaluator_JaneDoeScenario(t *testing.T) {
	// GIVEN: Jane Doe unavailable 2024-03-01 10:00-11:00
	h := availability.NewHolder(nil)
	h.Publish(availability.Build([]meeting.Employee{janeWithSlot()}))
	ev := availability.NewEvaluator(h)

	// WHEN/THEN
	res := ev.Evaluate("Jane Doe", date("2024-03-01"), at("10:30"))
	assert.Equal(t, availability.StatusConflict, res.Status)
	require.NotNil(t, res.Reason)
	assert.Equal(t, "Dentist", res.Reason.Reason)

	assert.Equal(t, availability.StatusAvailable, ev.Evaluate("Jane Doe", date("2024-03-01"), at("11:01")).Status)
	assert.True(t, ev.Evaluate("Jane Doe", date("2024-03-01"), at("11:00")).Conflict())
}

func TestEvaluator_UnknownBeforeFirstPublish(t *testing.T) {
	ev := availability.NewEvaluator(availability.NewHolder(nil))
	res := ev.Evaluate("Jane Doe", date("2024-03-01"), at("10:30"))
	assert.Equal(t, availability.StatusUnknown, res.Status)
	assert.False(t, res.Conflict())
}

func TestHolder_RefreshPublishesAndKeepsPreviousOnFailure(t *testing.T) {
	calls := 0
	h := availability.NewHolder(func(ctx context.Context) ([]meeting.Employee, error) {
		calls++
		if calls == 2 {
			return nil, errors.New("store down")
		}
		return []meeting.Employee{janeWithSlot()}, nil
	})

	first, err := h.Refresh(context.Background())
	require.NoError(t, err)
	assert.Same(t, first, h.Index())

	_, err = h.Refresh(context.Background())
	assert.Error(t, err)
	assert.Same(t, first, h.Index(), "failed refresh keeps previous index")
}

func TestHolder_ConcurrentReadersDuringRefresh(t *testing.T) {
	h := availability.NewHolder(func(ctx context.Context) ([]meeting.Employee, error) {
		return []meeting.Employee{janeWithSlot()}, nil
	})
	_, err := h.Refresh(context.Background())
	require.NoError(t, err)
	ev := availability.NewEvaluator(h)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = h.Refresh(context.Background())
		}()
		go func() {
			defer wg.Done()
			assert.True(t, ev.Evaluate("Jane Doe", date("2024-03-01"), at("10:30")).Conflict())
		}()
	}
	wg.Wait()
}
