package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestSubscription_Days(t *testing.T) {
	sub := &Subscription{Start: date(2024, 1, 1), End: date(2024, 3, 1)}

	assert.Equal(t, date(2024, 4, 2), sub.CutDay())

	tests := []struct {
		name       string
		today      time.Time
		wantActive bool
		wantTrial  bool
	}{
		{"оплаченный период", date(2024, 2, 15), true, false},
		{"последний день оплаченного периода", date(2024, 2, 29), true, false},
		{"первый день льготного месяца", date(2024, 3, 1), true, true},
		{"внутри льготного месяца", date(2024, 3, 20), true, true},
		{"канун дня отключения", date(2024, 4, 1), true, true},
		{"день отключения", date(2024, 4, 2), false, false},
		{"после дня отключения", date(2024, 5, 1), false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantActive, sub.IsActive(tt.today))
			assert.Equal(t, tt.wantTrial, sub.IsTrial(tt.today))
		})
	}
}

func TestSubscription_RenewDay(t *testing.T) {
	sub := &Subscription{Start: date(2024, 1, 1), End: date(2024, 3, 1)}

	// Действующая подписка продлевается со дня отключения.
	assert.Equal(t, sub.CutDay(), sub.RenewDay(date(2024, 3, 15)))
	// Истёкшая — немедленно.
	today := date(2024, 6, 1)
	assert.Equal(t, today, sub.RenewDay(today))
}

func TestCurrentSubscription(t *testing.T) {
	old := &Subscription{ID: 1, Start: date(2023, 1, 1), End: date(2023, 7, 1)}
	current := &Subscription{ID: 2, Start: date(2024, 1, 1), End: date(2024, 7, 1)}

	assert.Nil(t, CurrentSubscription(nil))
	assert.Equal(t, current, CurrentSubscription([]*Subscription{old, current}))
	assert.Equal(t, current, CurrentSubscription([]*Subscription{current, old}))
}

func TestComputeSubState(t *testing.T) {
	tests := []struct {
		name  string
		subs  []*Subscription
		today time.Time
		want  SubState
	}{
		{
			name:  "нет подписок — trial по умолчанию",
			subs:  nil,
			today: date(2024, 1, 1),
			want:  SubStateTrial,
		},
		{
			name:  "действующая оплаченная подписка",
			subs:  []*Subscription{{Start: date(2024, 1, 1), End: date(2024, 7, 1)}},
			today: date(2024, 3, 1),
			want:  SubStateSubscribed,
		},
		{
			name:  "льготный месяц",
			subs:  []*Subscription{{Start: date(2024, 1, 1), End: date(2024, 7, 1)}},
			today: date(2024, 7, 15),
			want:  SubStateTrial,
		},
		{
			name:  "льготный месяц истёк",
			subs:  []*Subscription{{Start: date(2024, 1, 1), End: date(2024, 7, 1)}},
			today: date(2024, 8, 2),
			want:  SubStateOutlaw,
		},
		{
			name: "учитывается только подписка с самым поздним началом",
			subs: []*Subscription{
				{Start: date(2023, 1, 1), End: date(2023, 2, 1)},
				{Start: date(2024, 1, 1), End: date(2024, 7, 1)},
			},
			today: date(2024, 3, 1),
			want:  SubStateSubscribed,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ComputeSubState(tt.subs, tt.today))
		})
	}
}

func TestRental_IsCurrent(t *testing.T) {
	today := date(2024, 5, 10)
	end := date(2024, 6, 1)
	past := date(2024, 5, 10)

	assert.True(t, (&Rental{Start: date(2024, 1, 1)}).IsCurrent(today))
	assert.True(t, (&Rental{Start: date(2024, 1, 1), End: &end}).IsCurrent(today))
	// Аренда, заканчивающаяся сегодня, уже не текущая.
	assert.False(t, (&Rental{Start: date(2024, 1, 1), End: &past}).IsCurrent(today))
}

func TestBan_IsActive(t *testing.T) {
	now := date(2024, 5, 10)
	future := date(2024, 6, 1)
	past := date(2024, 5, 1)

	assert.True(t, (&Ban{Start: past}).IsActive(now))
	assert.True(t, (&Ban{Start: past, End: &future}).IsActive(now))
	assert.False(t, (&Ban{Start: future}).IsActive(now))
	assert.False(t, (&Ban{Start: past.AddDate(0, -1, 0), End: &past}).IsActive(now))
}
