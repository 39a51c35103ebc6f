package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"careAlert/internal/domain"
	"careAlert/internal/storage/memory"
	"careAlert/pkg/e"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAlert(patientID string, at time.Time) *domain.Alert {
	return domain.NewAlert(&domain.User{ID: patientID, Name: "Pat " + patientID}, domain.Coord{Lat: 1.3, Lng: 103.8}, domain.SeverityEmergency, at)
}

func TestAlertRepository_InsertGet(t *testing.T) {
	t.Parallel()

	repo := memory.NewAlertRepository()
	a := newAlert("p1", time.Now())
	require.NoError(t, repo.Insert(context.Background(), a))

	got, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, domain.AlertActive, got.Status)

	// callers get copies
	got.Responders = append(got.Responders, domain.Responder{CaregiverID: "x"})
	again, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Empty(t, again.Responders)

	err = repo.Insert(context.Background(), a)
	assert.True(t, errors.Is(err, e.ErrUniqueViolation))
}

func TestAlertRepository_GetUnknown(t *testing.T) {
	t.Parallel()

	_, err := memory.NewAlertRepository().Get(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, e.ErrNotFound))
}

func TestAlertRepository_MutateRollsBackOnError(t *testing.T) {
	t.Parallel()

	repo := memory.NewAlertRepository()
	a := newAlert("p1", time.Now())
	require.NoError(t, repo.Insert(context.Background(), a))

	_, err := repo.Mutate(context.Background(), a.ID, func(al *domain.Alert) error {
		al.Status = domain.AlertResolved
		return e.ErrInvalidTransition
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, e.ErrInvalidTransition))

	got, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.AlertActive, got.Status)
}

func TestAlertRepository_ConcurrentAppendsKeepEveryResponder(t *testing.T) {
	t.Parallel()

	repo := memory.NewAlertRepository()
	a := newAlert("p1", time.Now())
	require.NoError(t, repo.Insert(context.Background(), a))

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := repo.Mutate(context.Background(), a.ID, func(al *domain.Alert) error {
				return al.AppendResponder(domain.Responder{
					CaregiverID: fmt.Sprintf("c%d", i),
					Status:      domain.ResponderAcknowledged,
				})
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, err := repo.Get(context.Background(), a.ID)
	require.NoError(t, err)
	assert.Len(t, got.Responders, n)
	assert.Equal(t, domain.AlertResponded, got.Status)
}

func TestAlertRepository_ConcurrentDuplicateAppendOneWins(t *testing.T) {
	t.Parallel()

	repo := memory.NewAlertRepository()
	a := newAlert("p1", time.Now())
	require.NoError(t, repo.Insert(context.Background(), a))

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		oks  int
		dups int
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.Mutate(context.Background(), a.ID, func(al *domain.Alert) error {
				return al.AppendResponder(domain.Responder{CaregiverID: "c1", Status: domain.ResponderAcknowledged})
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				oks++
			case errors.Is(err, e.ErrDuplicateResponder):
				dups++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, oks)
	assert.Equal(t, 9, dups)
}

func TestAlertRepository_ListsNewestFirst(t *testing.T) {
	t.Parallel()

	repo := memory.NewAlertRepository()
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	old := newAlert("p1", base)
	mid := newAlert("p2", base.Add(time.Minute))
	recent := newAlert("p1", base.Add(2*time.Minute))
	for _, a := range []*domain.Alert{mid, old, recent} {
		require.NoError(t, repo.Insert(context.Background(), a))
	}
	_, err := repo.Mutate(context.Background(), mid.ID, func(al *domain.Alert) error {
		return al.SetStatus(domain.AlertResolved, base)
	})
	require.NoError(t, err)

	open, err := repo.ListByStatus(context.Background(), domain.AlertActive, domain.AlertResponded)
	require.NoError(t, err)
	require.Len(t, open, 2)
	assert.Equal(t, recent.ID, open[0].ID)
	assert.Equal(t, old.ID, open[1].ID)

	history, err := repo.ListByPatient(context.Background(), "p1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, recent.ID, history[0].ID)

	counts, err := repo.CountSince(context.Background(), base.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(1), counts[domain.AlertActive])
	assert.Equal(t, int64(1), counts[domain.AlertResolved])
}

func TestNotificationQueue_PopTimesOut(t *testing.T) {
	t.Parallel()

	q := memory.NewNotificationQueue(1)
	_, err := q.Pop(context.Background(), 10*time.Millisecond)
	assert.True(t, errors.Is(err, e.ErrQueueEmpty))

	n := domain.Notification{ID: uuid.New(), CaregiverID: "c1"}
	require.NoError(t, q.Enqueue(context.Background(), n))
	got, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, n.ID, got.ID)
}

func TestNotificationQueue_EnqueueFailsFastWhenFull(t *testing.T) {
	t.Parallel()

	q := memory.NewNotificationQueue(1)
	require.NoError(t, q.Enqueue(context.Background(), domain.Notification{ID: uuid.New(), CaregiverID: "c1"}))

	done := make(chan error, 1)
	go func() {
		done <- q.Enqueue(context.Background(), domain.Notification{ID: uuid.New(), CaregiverID: "c2"})
	}()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, e.ErrQueueFull))
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}

	// draining frees a slot again
	_, err := q.Pop(context.Background(), time.Second)
	require.NoError(t, err)
	assert.NoError(t, q.Enqueue(context.Background(), domain.Notification{ID: uuid.New(), CaregiverID: "c3"}))
}

func TestDirectory_ListCaregivers(t *testing.T) {
	t.Parallel()

	d := memory.NewDirectory(
		domain.User{ID: "p1", UserType: domain.UserPatient},
		domain.User{ID: "c2", UserType: domain.UserCaregiver},
		domain.User{ID: "c1", UserType: domain.UserCaregiver, AssignedPatients: []string{"p1"}},
		domain.User{ID: "v1", UserType: domain.UserVolunteer},
	)
	cgs, err := d.ListCaregivers(context.Background())
	require.NoError(t, err)
	require.Len(t, cgs, 2)
	assert.Equal(t, "c1", cgs[0].ID)

	_, err = d.GetUser(context.Background(), "nobody")
	assert.True(t, errors.Is(err, e.ErrNotFound))
}
