package domain_test

import (
	"context"
	"errors"
	"maps"
	"sort"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"civica/internal/domain"
)

// memStore is an in-memory domain.Store with copy-on-begin transactions,
// used to drive sessions without a database and to inject write failures.
type memStore struct {
	mu            sync.Mutex
	cities        map[int64]cityRow
	citizens      map[int64]citizenRow
	nextCityID    int64
	nextCitizenID int64

	failInsertCitizen bool
	failCommit        bool
}

type cityRow struct {
	name       string
	country    string
	population int
}

type citizenRow struct {
	first  string
	last   string
	age    int
	cityID int64
}

func newMemStore() *memStore {
	return &memStore{
		cities:   make(map[int64]cityRow),
		citizens: make(map[int64]citizenRow),
	}
}

func (s *memStore) Begin(ctx context.Context) (domain.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return &memTx{
		store:         s,
		cities:        maps.Clone(s.cities),
		citizens:      maps.Clone(s.citizens),
		nextCityID:    s.nextCityID,
		nextCitizenID: s.nextCitizenID,
	}, nil
}

func (s *memStore) Close() error { return nil }

type memTx struct {
	store         *memStore
	cities        map[int64]cityRow
	citizens      map[int64]citizenRow
	nextCityID    int64
	nextCitizenID int64
	done          bool
}

func (t *memTx) FindCity(ctx context.Context, id int64) (*domain.City, error) {
	row, ok := t.cities[id]
	if !ok {
		return nil, nil
	}
	return domain.RestoreCity(id, row.name, row.country, row.population), nil
}

func (t *memTx) FindCitizen(ctx context.Context, id int64) (*domain.Citizen, error) {
	row, ok := t.citizens[id]
	if !ok {
		return nil, nil
	}
	return domain.RestoreCitizen(id, row.first, row.last, row.age, row.cityID), nil
}

func (t *memTx) CitizensOf(ctx context.Context, cityID int64) ([]*domain.Citizen, error) {
	var ids []int64
	for id, row := range t.citizens {
		if row.cityID == cityID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.Citizen, 0, len(ids))
	for _, id := range ids {
		row := t.citizens[id]
		out = append(out, domain.RestoreCitizen(id, row.first, row.last, row.age, row.cityID))
	}
	return out, nil
}

func (t *memTx) InsertCity(ctx context.Context, c *domain.City) (int64, error) {
	t.nextCityID++
	t.cities[t.nextCityID] = cityRow{name: c.Name, country: c.Country, population: c.Population}
	return t.nextCityID, nil
}

func (t *memTx) InsertCitizen(ctx context.Context, z *domain.Citizen) (int64, error) {
	if t.store.failInsertCitizen {
		return 0, errors.New("injected insert failure")
	}
	t.nextCitizenID++
	t.citizens[t.nextCitizenID] = citizenRow{first: z.FirstName, last: z.LastName, age: z.Age, cityID: z.CityID}
	return t.nextCitizenID, nil
}

func (t *memTx) UpdateCity(ctx context.Context, c *domain.City) error {
	if _, ok := t.cities[c.ID]; !ok {
		return domain.ErrNotFound
	}
	t.cities[c.ID] = cityRow{name: c.Name, country: c.Country, population: c.Population}
	return nil
}

func (t *memTx) UpdateCitizen(ctx context.Context, z *domain.Citizen) error {
	if _, ok := t.citizens[z.ID]; !ok {
		return domain.ErrNotFound
	}
	t.citizens[z.ID] = citizenRow{first: z.FirstName, last: z.LastName, age: z.Age, cityID: z.CityID}
	return nil
}

func (t *memTx) DeleteCity(ctx context.Context, id int64) error {
	delete(t.cities, id)
	return nil
}

func (t *memTx) DeleteCitizen(ctx context.Context, id int64) error {
	delete(t.citizens, id)
	return nil
}

func (t *memTx) ListCities(ctx context.Context, orderBy string) ([]*domain.City, error) {
	var ids []int64
	for id := range t.cities {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.City, 0, len(ids))
	for _, id := range ids {
		row := t.cities[id]
		out = append(out, domain.RestoreCity(id, row.name, row.country, row.population))
	}
	return out, nil
}

func (t *memTx) ListCitizens(ctx context.Context, orderBy string) ([]*domain.Citizen, error) {
	var ids []int64
	for id := range t.citizens {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	out := make([]*domain.Citizen, 0, len(ids))
	for _, id := range ids {
		row := t.citizens[id]
		out = append(out, domain.RestoreCitizen(id, row.first, row.last, row.age, row.cityID))
	}
	return out, nil
}

func (t *memTx) Commit() error {
	if t.store.failCommit {
		return errors.New("injected commit failure")
	}
	t.store.mu.Lock()
	defer t.store.mu.Unlock()
	t.store.cities = t.cities
	t.store.citizens = t.citizens
	t.store.nextCityID = t.nextCityID
	t.store.nextCitizenID = t.nextCitizenID
	t.done = true
	return nil
}

func (t *memTx) Rollback() error {
	t.done = true
	return nil
}

func begin(t *testing.T, store domain.Store) *domain.Session {
	t.Helper()
	sess, err := domain.Begin(context.Background(), store)
	require.NoError(t, err)
	return sess
}

func TestCommitAssignsIdentities(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	sess := begin(t, store)

	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	citizen, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Ada", "Lovelace", 36))
	require.NoError(t, err)
	require.NoError(t, sess.Attach(city, citizen))

	assert.False(t, city.Persisted())
	require.NoError(t, sess.Commit(ctx))

	assert.True(t, city.Persisted())
	assert.True(t, citizen.Persisted())
	assert.Equal(t, city.ID, citizen.CityID)
	assert.Equal(t, domain.StateDetached, city.State())
	assert.Equal(t, domain.StateDetached, citizen.State())
}

func TestCommitFlushesEveryTrackedEntity(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	require.NoError(t, sess.Commit(ctx))

	// Edits on a loaded entity flush without any explicit save call.
	sess2 := begin(t, store)
	loaded, err := sess2.GetCity(ctx, city.ID)
	require.NoError(t, err)
	loaded.Population = 125000
	require.NoError(t, sess2.Commit(ctx))

	sess3 := begin(t, store)
	reloaded, err := sess3.GetCity(ctx, city.ID)
	require.NoError(t, err)
	assert.Equal(t, 125000, reloaded.Population)
	require.NoError(t, sess3.Abort())
}

func TestIdentityMapSingleInstance(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	require.NoError(t, sess.Commit(ctx))

	sess2 := begin(t, store)
	first, err := sess2.GetCity(ctx, city.ID)
	require.NoError(t, err)
	second, err := sess2.GetCity(ctx, city.ID)
	require.NoError(t, err)
	assert.Same(t, first, second)
	require.NoError(t, sess2.Abort())
}

func TestGetAbsentReturnsNil(t *testing.T) {
	ctx := context.Background()
	sess := begin(t, newMemStore())

	city, err := sess.GetCity(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, city)

	citizen, err := sess.GetCitizen(ctx, 42)
	require.NoError(t, err)
	assert.Nil(t, citizen)
}

func TestEagerLoadWiresCollections(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	ada, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Ada", "Lovelace", 36))
	require.NoError(t, err)
	require.NoError(t, sess.Attach(city, ada))
	require.NoError(t, sess.Commit(ctx))

	t.Run("loading the city pulls its citizens", func(t *testing.T) {
		sess := begin(t, store)
		defer sess.Abort()

		loaded, err := sess.GetCity(ctx, city.ID)
		require.NoError(t, err)
		members := sess.CitizensIn(loaded)
		require.Len(t, members, 1)
		assert.Equal(t, ada.ID, members[0].ID)
		assert.Same(t, loaded, sess.ParentOf(members[0]))
	})

	t.Run("loading a citizen pulls its city", func(t *testing.T) {
		sess := begin(t, store)
		defer sess.Abort()

		loaded, err := sess.GetCitizen(ctx, ada.ID)
		require.NoError(t, err)
		parent := sess.ParentOf(loaded)
		require.NotNil(t, parent)
		assert.Equal(t, city.ID, parent.ID)
		assert.Contains(t, sess.CitizensIn(parent), loaded)
	})
}

func TestSessionRelationshipOverridesStoredLink(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	cityA, err := sess.ResolveCity(ctx, domain.NewCity("Alpha", "US", 100))
	require.NoError(t, err)
	cityB, err := sess.ResolveCity(ctx, domain.NewCity("Beta", "US", 200))
	require.NoError(t, err)
	ada, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Ada", "Lovelace", 36))
	require.NoError(t, err)
	require.NoError(t, sess.Attach(cityA, ada))
	require.NoError(t, sess.Commit(ctx))

	// Move the citizen first, then load its old city: the stored link
	// must not re-claim it.
	sess2 := begin(t, store)
	defer sess2.Abort()

	z, err := sess2.GetCitizen(ctx, ada.ID)
	require.NoError(t, err)
	b, err := sess2.GetCity(ctx, cityB.ID)
	require.NoError(t, err)
	require.NoError(t, sess2.Attach(b, z))

	a, err := sess2.GetCity(ctx, cityA.ID)
	require.NoError(t, err)
	assert.Empty(t, sess2.CitizensIn(a))
	assert.Same(t, b, sess2.ParentOf(z))
}

func TestAbortDiscardsEverything(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	require.NoError(t, sess.Abort())

	assert.False(t, city.Persisted())
	assert.Equal(t, domain.StateUnbound, city.State())
	assert.Empty(t, store.cities)
}

func TestFailedCommitRevokesIdentities(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failInsertCitizen = true

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	citizen, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Ada", "Lovelace", 36))
	require.NoError(t, err)
	require.NoError(t, sess.Attach(city, citizen))

	err = sess.Commit(ctx)
	require.Error(t, err)
	var perr *domain.PersistenceError
	assert.ErrorAs(t, err, &perr)

	// Identities assigned during the failed flush are revoked and the
	// store is untouched.
	assert.Zero(t, city.ID)
	assert.Zero(t, citizen.ID)
	assert.Equal(t, domain.StateUnbound, city.State())
	assert.Equal(t, domain.StateUnbound, citizen.State())
	assert.Empty(t, store.cities)
	assert.Empty(t, store.citizens)
}

func TestFailedTxCommitRevokesIdentities(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.failCommit = true

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)

	err = sess.Commit(ctx)
	require.Error(t, err)
	assert.Zero(t, city.ID)
	assert.Empty(t, store.cities)
}

func TestClosedSessionRejectsOperations(t *testing.T) {
	ctx := context.Background()
	sess := begin(t, newMemStore())
	require.NoError(t, sess.Commit(ctx))

	_, err := sess.GetCity(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrClosed)
	_, err = sess.ResolveCity(ctx, domain.NewCity("X", "Y", 1))
	assert.ErrorIs(t, err, domain.ErrClosed)
	assert.ErrorIs(t, sess.Commit(ctx), domain.ErrClosed)

	// Abort after close is a safe no-op.
	assert.NoError(t, sess.Abort())
}

func TestRemoveCityCascades(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	attached, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Ada", "Lovelace", 36))
	require.NoError(t, err)
	orphaned, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Alan", "Turing", 41))
	require.NoError(t, err)
	require.NoError(t, sess.Attach(city, attached))
	require.NoError(t, sess.Attach(city, orphaned))
	require.NoError(t, sess.Commit(ctx))

	// Detach one citizen before removing the city: removal takes only
	// the citizens still attached at that moment.
	sess2 := begin(t, store)
	c, err := sess2.GetCity(ctx, city.ID)
	require.NoError(t, err)
	o, err := sess2.GetCitizen(ctx, orphaned.ID)
	require.NoError(t, err)
	require.NoError(t, sess2.Detach(c, o))
	require.NoError(t, sess2.RemoveCity(c))
	require.NoError(t, sess2.Commit(ctx))

	assert.Equal(t, domain.StateRemoved, c.State())

	sess3 := begin(t, store)
	defer sess3.Abort()
	gone, err := sess3.GetCity(ctx, city.ID)
	require.NoError(t, err)
	assert.Nil(t, gone)
	goneToo, err := sess3.GetCitizen(ctx, attached.ID)
	require.NoError(t, err)
	assert.Nil(t, goneToo)

	survivor, err := sess3.GetCitizen(ctx, orphaned.ID)
	require.NoError(t, err)
	require.NotNil(t, survivor)
	assert.Zero(t, survivor.CityID)
}

func TestRemoveCitizenDetachesFirst(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	citizen, err := sess.ResolveCitizen(ctx, domain.NewCitizen("Ada", "Lovelace", 36))
	require.NoError(t, err)
	require.NoError(t, sess.Attach(city, citizen))
	require.NoError(t, sess.RemoveCitizen(citizen))

	assert.Empty(t, sess.CitizensIn(city))
	assert.Nil(t, sess.ParentOf(citizen))
	require.NoError(t, sess.Commit(ctx))

	sess2 := begin(t, store)
	defer sess2.Abort()
	loaded, err := sess2.GetCity(ctx, city.ID)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Empty(t, sess2.CitizensIn(loaded))
}

func TestRemoveUntrackedFails(t *testing.T) {
	sess := begin(t, newMemStore())
	defer sess.Abort()

	assert.ErrorIs(t, sess.RemoveCity(domain.NewCity("X", "Y", 1)), domain.ErrNotTracked)
	assert.ErrorIs(t, sess.RemoveCitizen(domain.NewCitizen("A", "B", 1)), domain.ErrNotTracked)
}

func TestAbortedRemovalDoesNotStick(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()

	sess := begin(t, store)
	city, err := sess.ResolveCity(ctx, domain.NewCity("Riverside", "US", 120000))
	require.NoError(t, err)
	require.NoError(t, sess.Commit(ctx))

	sess2 := begin(t, store)
	c, err := sess2.GetCity(ctx, city.ID)
	require.NoError(t, err)
	require.NoError(t, sess2.RemoveCity(c))
	require.NoError(t, sess2.Abort())

	// The entity keeps its identity and reverts to detached.
	assert.Equal(t, domain.StateDetached, c.State())

	sess3 := begin(t, store)
	defer sess3.Abort()
	still, err := sess3.GetCity(ctx, city.ID)
	require.NoError(t, err)
	assert.NotNil(t, still)
}
