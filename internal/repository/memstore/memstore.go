// Package memstore is an in-memory repository.Store. Units of work are
// serialized by a single mutex and rolled back from a snapshot on error,
// which gives the same all-or-nothing behaviour as the postgres store.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"djqueue-backend/internal/models"
	"djqueue-backend/internal/repository"
)

// Store is an in-memory repository.Store
type Store struct {
	mu     sync.Mutex
	data   *state
	faults map[string]error
}

// New creates an empty store
func New() *Store {
	return &Store{data: newState(), faults: make(map[string]error)}
}

// InjectFault makes the named querier method fail with err until cleared with a nil err.
func (s *Store) InjectFault(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.faults, method)
		return
	}
	s.faults[method] = err
}

// InTx runs fn against the live state and restores a snapshot when fn fails
func (s *Store) InTx(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.data.clone()
	if err := fn(&querier{st: s.data, faults: s.faults}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

// View runs fn against the live state
func (s *Store) View(ctx context.Context, fn func(q repository.Querier) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&querier{st: s.data, faults: s.faults})
}

var _ repository.Store = (*Store)(nil)

type state struct {
	users           map[string]models.User
	djProfiles      map[string]models.DJProfile
	throwerProfiles map[string]models.PartyThrowerProfile
	events          map[string]models.Event
	eventOrder      []string
	queue           []models.QueueEntry
	messages        []models.Message
	ratings         []models.Rating
	notifications   []models.Notification
}

func newState() *state {
	return &state{
		users:           make(map[string]models.User),
		djProfiles:      make(map[string]models.DJProfile),
		throwerProfiles: make(map[string]models.PartyThrowerProfile),
		events:          make(map[string]models.Event),
	}
}

// clone copies every table. Rows are stored by value and pointer fields are
// only ever replaced, never written through, so a shallow row copy is enough.
func (st *state) clone() *state {
	c := newState()
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.djProfiles {
		c.djProfiles[k] = v
	}
	for k, v := range st.throwerProfiles {
		c.throwerProfiles[k] = v
	}
	for k, v := range st.events {
		c.events[k] = v
	}
	c.eventOrder = append([]string(nil), st.eventOrder...)
	c.queue = append([]models.QueueEntry(nil), st.queue...)
	c.messages = append([]models.Message(nil), st.messages...)
	c.ratings = append([]models.Rating(nil), st.ratings...)
	c.notifications = append([]models.Notification(nil), st.notifications...)
	return c
}

type querier struct {
	st     *state
	faults map[string]error
}

func (q *querier) fault(method string) error {
	if err, ok := q.faults[method]; ok {
		return fmt.Errorf("failed to %s: %w", method, err)
	}
	return nil
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, repository.ErrNotFound)
}

func duplicate(what string) error {
	return fmt.Errorf("failed to %s: %w", what, repository.ErrDuplicate)
}

func (q *querier) userName(id string) string {
	return q.st.users[id].Name
}

// Users

func (q *querier) CreateUser(_ context.Context, user *models.User) error {
	if err := q.fault("CreateUser"); err != nil {
		return err
	}
	if _, ok := q.st.users[user.ID]; ok {
		return duplicate("create user")
	}
	q.st.users[user.ID] = *user
	return nil
}

func (q *querier) GetUser(_ context.Context, id string) (*models.User, error) {
	u, ok := q.st.users[id]
	if !ok {
		return nil, notFound("user")
	}
	return &u, nil
}

func (q *querier) GetUserForUpdate(ctx context.Context, id string) (*models.User, error) {
	return q.GetUser(ctx, id)
}

func (q *querier) AssignRole(_ context.Context, id, name string, role models.Role) error {
	if err := q.fault("AssignRole"); err != nil {
		return err
	}
	u, ok := q.st.users[id]
	if !ok || u.Role != models.RoleUnset {
		return notFound("user with unset role")
	}
	u.Name = name
	u.Role = role
	q.st.users[id] = u
	return nil
}

func (q *querier) UpdateAvatarURL(_ context.Context, id, avatarURL string) error {
	u, ok := q.st.users[id]
	if !ok {
		return notFound("user")
	}
	u.AvatarURL = &avatarURL
	q.st.users[id] = u
	return nil
}

func (q *querier) UpdatePushToken(_ context.Context, id string, pushToken *string) error {
	u, ok := q.st.users[id]
	if !ok {
		return nil
	}
	if pushToken != nil {
		token := *pushToken
		pushToken = &token
	}
	u.PushToken = pushToken
	q.st.users[id] = u
	return nil
}

// Profiles

func (q *querier) CreateDJProfile(_ context.Context, p *models.DJProfile) error {
	if err := q.fault("CreateDJProfile"); err != nil {
		return err
	}
	if _, ok := q.st.djProfiles[p.UserID]; ok {
		return duplicate("create dj profile")
	}
	q.st.djProfiles[p.UserID] = *p
	return nil
}

func (q *querier) CreatePartyThrowerProfile(_ context.Context, p *models.PartyThrowerProfile) error {
	if err := q.fault("CreatePartyThrowerProfile"); err != nil {
		return err
	}
	if _, ok := q.st.throwerProfiles[p.UserID]; ok {
		return duplicate("create party thrower profile")
	}
	q.st.throwerProfiles[p.UserID] = *p
	return nil
}

func (q *querier) GetDJProfile(_ context.Context, userID string) (*models.DJProfile, error) {
	p, ok := q.st.djProfiles[userID]
	if !ok {
		return nil, notFound("dj profile")
	}
	u := q.st.users[userID]
	p.Name = u.Name
	p.AvatarURL = u.AvatarURL
	return &p, nil
}

func (q *querier) GetPartyThrowerProfile(_ context.Context, userID string) (*models.PartyThrowerProfile, error) {
	p, ok := q.st.throwerProfiles[userID]
	if !ok {
		return nil, notFound("party thrower profile")
	}
	u := q.st.users[userID]
	p.Name = u.Name
	p.AvatarURL = u.AvatarURL
	return &p, nil
}

func (q *querier) UpdateDJProfile(_ context.Context, userID string, update models.DJProfileUpdate) error {
	p, ok := q.st.djProfiles[userID]
	if !ok {
		return notFound("dj profile")
	}
	if update.Bio != nil {
		p.Bio = *update.Bio
	}
	if update.Genres != nil {
		p.Genres = *update.Genres
	}
	if update.ExperienceYears != nil {
		p.ExperienceYears = *update.ExperienceYears
	}
	q.st.djProfiles[userID] = p
	return nil
}

func (q *querier) UpdatePartyThrowerBio(_ context.Context, userID, bio string) error {
	p, ok := q.st.throwerProfiles[userID]
	if !ok {
		return notFound("party thrower profile")
	}
	p.Bio = bio
	q.st.throwerProfiles[userID] = p
	return nil
}

func (q *querier) IncrementDJTotalEvents(_ context.Context, userID string) error {
	if err := q.fault("IncrementDJTotalEvents"); err != nil {
		return err
	}
	if p, ok := q.st.djProfiles[userID]; ok {
		p.TotalEvents++
		q.st.djProfiles[userID] = p
	}
	return nil
}

func (q *querier) IncrementEventsCreated(_ context.Context, userID string) error {
	if p, ok := q.st.throwerProfiles[userID]; ok {
		p.TotalEventsCreated++
		q.st.throwerProfiles[userID] = p
	}
	return nil
}

func (q *querier) SetAverageRating(_ context.Context, userID string, role models.Role, average float64) error {
	if err := q.fault("SetAverageRating"); err != nil {
		return err
	}
	switch role {
	case models.RoleDJ:
		if p, ok := q.st.djProfiles[userID]; ok {
			p.AverageRating = average
			q.st.djProfiles[userID] = p
		}
	case models.RolePartyThrower:
		if p, ok := q.st.throwerProfiles[userID]; ok {
			p.AverageRating = average
			q.st.throwerProfiles[userID] = p
		}
	}
	return nil
}

// Events

func (q *querier) CreateEvent(_ context.Context, e *models.Event) error {
	if err := q.fault("CreateEvent"); err != nil {
		return err
	}
	if _, ok := q.st.events[e.ID]; ok {
		return duplicate("create event")
	}
	q.st.events[e.ID] = *e
	q.st.eventOrder = append(q.st.eventOrder, e.ID)
	return nil
}

func (q *querier) GetEvent(_ context.Context, id string) (*models.Event, error) {
	e, ok := q.st.events[id]
	if !ok {
		return nil, notFound("event")
	}
	return &e, nil
}

func (q *querier) GetEventForUpdate(ctx context.Context, id string) (*models.Event, error) {
	return q.GetEvent(ctx, id)
}

func (q *querier) detail(e models.Event) *models.EventDetail {
	d := &models.EventDetail{
		Event:       e,
		State:       e.State(),
		CreatorName: q.userName(e.CreatorID),
	}
	if e.SelectedDJID != nil {
		name := q.userName(*e.SelectedDJID)
		d.SelectedDJName = &name
	}
	if e.PendingDJID != nil {
		name := q.userName(*e.PendingDJID)
		d.PendingDJName = &name
	}
	for _, entry := range q.st.queue {
		if entry.EventID == e.ID {
			d.QueueCount++
		}
	}
	return d
}

func (q *querier) GetEventDetail(_ context.Context, id string) (*models.EventDetail, error) {
	e, ok := q.st.events[id]
	if !ok {
		return nil, notFound("event")
	}
	return q.detail(e), nil
}

func (q *querier) ListEvents(_ context.Context, excludeCancelled bool) ([]*models.EventDetail, error) {
	var events []*models.EventDetail
	for _, id := range q.st.eventOrder {
		e := q.st.events[id]
		if excludeCancelled && e.Status == models.EventStatusCancelled {
			continue
		}
		events = append(events, q.detail(e))
	}
	sort.SliceStable(events, func(i, j int) bool {
		if events[i].CreatedAt.Equal(events[j].CreatedAt) {
			return events[i].ID < events[j].ID
		}
		return events[i].CreatedAt.After(events[j].CreatedAt)
	})
	return events, nil
}

func (q *querier) SaveEventState(_ context.Context, e *models.Event) error {
	if err := q.fault("SaveEventState"); err != nil {
		return err
	}
	stored, ok := q.st.events[e.ID]
	if !ok {
		return notFound("event")
	}
	stored.Status = e.Status
	stored.SelectedDJID = copyString(e.SelectedDJID)
	stored.PendingDJID = copyString(e.PendingDJID)
	q.st.events[e.ID] = stored
	return nil
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

// Queue

func (q *querier) InsertQueueEntry(_ context.Context, entry *models.QueueEntry) error {
	if err := q.fault("InsertQueueEntry"); err != nil {
		return err
	}
	for _, existing := range q.st.queue {
		if existing.EventID == entry.EventID && existing.DJID == entry.DJID {
			return duplicate("insert queue entry")
		}
	}
	q.st.queue = append(q.st.queue, *entry)
	return nil
}

func (q *querier) DeleteQueueEntry(_ context.Context, eventID, djID string) (bool, error) {
	for i, entry := range q.st.queue {
		if entry.EventID == eventID && entry.DJID == djID {
			q.st.queue = append(q.st.queue[:i:i], q.st.queue[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (q *querier) QueueEntryExists(_ context.Context, eventID, djID string) (bool, error) {
	for _, entry := range q.st.queue {
		if entry.EventID == eventID && entry.DJID == djID {
			return true, nil
		}
	}
	return false, nil
}

func (q *querier) eventQueue(eventID string) []models.QueueEntry {
	var entries []models.QueueEntry
	for _, entry := range q.st.queue {
		if entry.EventID == eventID {
			entries = append(entries, entry)
		}
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].JoinedAt.Before(entries[j].JoinedAt)
	})
	return entries
}

func (q *querier) ListQueue(_ context.Context, eventID string) ([]*models.QueueEntryView, error) {
	var views []*models.QueueEntryView
	for _, entry := range q.eventQueue(eventID) {
		u := q.st.users[entry.DJID]
		p := q.st.djProfiles[entry.DJID]
		views = append(views, &models.QueueEntryView{
			QueueEntry:    entry,
			DJName:        u.Name,
			AvatarURL:     u.AvatarURL,
			AverageRating: p.AverageRating,
			Genres:        p.Genres,
			TotalEvents:   p.TotalEvents,
		})
	}
	return views, nil
}

func (q *querier) ListQueuedDJIDs(_ context.Context, eventID string) ([]string, error) {
	var ids []string
	for _, entry := range q.eventQueue(eventID) {
		ids = append(ids, entry.DJID)
	}
	return ids, nil
}

// Messages

func (q *querier) InsertMessage(_ context.Context, m *models.Message) error {
	if err := q.fault("InsertMessage"); err != nil {
		return err
	}
	q.st.messages = append(q.st.messages, *m)
	return nil
}

// sortedMessages returns the matching messages oldest first; insertion order breaks ties
func (q *querier) sortedMessages(match func(m models.Message) bool) []models.Message {
	var out []models.Message
	for _, m := range q.st.messages {
		if match(m) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (q *querier) view(m models.Message) *models.MessageView {
	return &models.MessageView{
		Message:      m,
		SenderName:   q.userName(m.SenderID),
		ReceiverName: q.userName(m.ReceiverID),
	}
}

func (q *querier) ListConversations(_ context.Context, userID string) ([]*models.Conversation, error) {
	type key struct{ eventID, otherID string }

	byKey := make(map[key]*models.Conversation)
	var order []*models.Conversation

	messages := q.sortedMessages(func(m models.Message) bool {
		return m.SenderID == userID || m.ReceiverID == userID
	})
	for _, m := range messages {
		other := m.SenderID
		if other == userID {
			other = m.ReceiverID
		}
		k := key{eventID: m.EventID, otherID: other}
		c, ok := byKey[k]
		if !ok {
			c = &models.Conversation{
				EventID:       m.EventID,
				EventTitle:    q.st.events[m.EventID].Title,
				OtherUserID:   other,
				OtherUserName: q.userName(other),
			}
			byKey[k] = c
			order = append(order, c)
		}
		c.LastMessage = m.Content
		c.LastMessageTime = m.CreatedAt
		if m.ReceiverID == userID && !m.Read {
			c.UnreadCount++
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return order[i].LastMessageTime.After(order[j].LastMessageTime)
	})
	return order, nil
}

func (q *querier) ListThread(_ context.Context, eventID, userID, counterpartID string) ([]*models.MessageView, error) {
	var views []*models.MessageView
	for _, m := range q.sortedMessages(func(m models.Message) bool {
		if m.EventID != eventID {
			return false
		}
		return (m.SenderID == userID && m.ReceiverID == counterpartID) ||
			(m.SenderID == counterpartID && m.ReceiverID == userID)
	}) {
		views = append(views, q.view(m))
	}
	return views, nil
}

func (q *querier) MarkThreadRead(_ context.Context, eventID, receiverID, senderID string) (int64, error) {
	if err := q.fault("MarkThreadRead"); err != nil {
		return 0, err
	}
	var n int64
	for i := range q.st.messages {
		m := &q.st.messages[i]
		if m.EventID == eventID && m.ReceiverID == receiverID && m.SenderID == senderID && !m.Read {
			m.Read = true
			n++
		}
	}
	return n, nil
}

func (q *querier) ListEventMessages(_ context.Context, eventID, userID string) ([]*models.MessageView, error) {
	var views []*models.MessageView
	for _, m := range q.sortedMessages(func(m models.Message) bool {
		return m.EventID == eventID && (m.SenderID == userID || m.ReceiverID == userID)
	}) {
		views = append(views, q.view(m))
	}
	return views, nil
}

func (q *querier) CountUnreadMessages(_ context.Context, userID string) (int, error) {
	count := 0
	for _, m := range q.st.messages {
		if m.ReceiverID == userID && !m.Read {
			count++
		}
	}
	return count, nil
}

// Ratings

func (q *querier) InsertRating(_ context.Context, r *models.Rating) error {
	if err := q.fault("InsertRating"); err != nil {
		return err
	}
	for _, existing := range q.st.ratings {
		if existing.EventID == r.EventID && existing.RatedUserID == r.RatedUserID && existing.RaterUserID == r.RaterUserID {
			return duplicate("insert rating")
		}
	}
	q.st.ratings = append(q.st.ratings, *r)
	return nil
}

func (q *querier) RatingExists(_ context.Context, eventID, ratedUserID, raterUserID string) (bool, error) {
	for _, r := range q.st.ratings {
		if r.EventID == eventID && r.RatedUserID == ratedUserID && r.RaterUserID == raterUserID {
			return true, nil
		}
	}
	return false, nil
}

func (q *querier) AverageRating(_ context.Context, userID string) (float64, int, error) {
	sum, count := 0, 0
	for _, r := range q.st.ratings {
		if r.RatedUserID == userID {
			sum += r.Score
			count++
		}
	}
	if count == 0 {
		return 0, 0, nil
	}
	return float64(sum) / float64(count), count, nil
}

func (q *querier) ListRatingsForUser(_ context.Context, userID string) ([]*models.RatingView, error) {
	var views []*models.RatingView
	for _, r := range q.st.ratings {
		if r.RatedUserID != userID {
			continue
		}
		views = append(views, &models.RatingView{
			Rating:     r,
			RaterName:  q.userName(r.RaterUserID),
			EventTitle: q.st.events[r.EventID].Title,
		})
	}
	// Newest first; later insertions win ties.
	for i, j := 0, len(views)-1; i < j; i, j = i+1, j-1 {
		views[i], views[j] = views[j], views[i]
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	return views, nil
}

// Notifications

func (q *querier) InsertNotification(_ context.Context, n *models.Notification) error {
	if err := q.fault("InsertNotification"); err != nil {
		return err
	}
	q.st.notifications = append(q.st.notifications, *n)
	return nil
}

func (q *querier) ListNotifications(_ context.Context, userID string, limit int) ([]*models.NotificationView, error) {
	var views []*models.NotificationView
	for i := len(q.st.notifications) - 1; i >= 0; i-- {
		n := q.st.notifications[i]
		if n.UserID != userID {
			continue
		}
		v := &models.NotificationView{Notification: n}
		if n.EventID != nil {
			if e, ok := q.st.events[*n.EventID]; ok {
				title := e.Title
				v.EventTitle = &title
			}
		}
		views = append(views, v)
	}
	sort.SliceStable(views, func(i, j int) bool {
		return views[i].CreatedAt.After(views[j].CreatedAt)
	})
	if limit > 0 && len(views) > limit {
		views = views[:limit]
	}
	return views, nil
}

func (q *querier) CountUnreadNotifications(_ context.Context, userID string) (int, error) {
	count := 0
	for _, n := range q.st.notifications {
		if n.UserID == userID && !n.Read {
			count++
		}
	}
	return count, nil
}

func (q *querier) MarkNotificationRead(_ context.Context, userID, id string) (bool, error) {
	for i := range q.st.notifications {
		n := &q.st.notifications[i]
		if n.ID == id && n.UserID == userID {
			n.Read = true
			return true, nil
		}
	}
	return false, nil
}

var _ repository.Querier = (*querier)(nil)
