// Package dashboard держит сессию дашборда: состояние, канал событий и команды роли.
//
// Состоянием владеет одна горутина цикла. Она по очереди применяет события канала
// и изменения из входящего ящика, после каждого изменения публикуя неизменяемый View.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"opspulse/internal/auth"
	"opspulse/internal/logger"
	"opspulse/internal/models"
	"opspulse/internal/realtime"
	"opspulse/internal/services"
	"opspulse/internal/state"

	"github.com/sirupsen/logrus"
)

var (
	// ErrNotMounted возвращается для операций над несмонтированным дашбордом
	ErrNotMounted = errors.New("dashboard is not mounted")
	// ErrAlreadyMounted возвращается при повторном монтировании
	ErrAlreadyMounted = errors.New("dashboard is already mounted")
	// ErrNotFound возвращается, если сущности нет в состоянии сессии
	ErrNotFound = errors.New("not found")
)

// Backend описывает REST бэкенд, которым пользуется дашборд
type Backend interface {
	ListOrders(ctx context.Context) ([]*models.Order, error)
	CreateOrder(ctx context.Context, req models.CreateOrderRequest) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, id int64, req models.UpdateOrderStatusRequest) (*models.Order, error)
	ApproveOrder(ctx context.Context, id int64, req models.ApproveOrderRequest) (*models.Order, error)
	ListLocations(ctx context.Context) ([]models.AgentLocation, error)
	PushLocation(ctx context.Context, req models.PushLocationRequest) error
	ListVehicles(ctx context.Context) ([]*models.Vehicle, error)
	CreateVehicle(ctx context.Context, req models.CreateVehicleRequest) (*models.Vehicle, error)
	ApproveVehicle(ctx context.Context, id int64, req models.ApproveVehicleRequest) (*models.Vehicle, error)
	AssignVehicleAgent(ctx context.Context, id int64, req models.AssignAgentRequest) (*models.Vehicle, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateUserRole(ctx context.Context, id int64, req models.UpdateRoleRequest) (*models.User, error)
	ListAgents(ctx context.Context) ([]*models.User, error)
}

// Router строит маршруты для пар точек
type Router interface {
	ResolveBatch(ctx context.Context, pairs []models.RoutePair) map[int64]models.Route
}

// Geocoder переводит адрес в координаты; nil означает промах
type Geocoder interface {
	Geocode(ctx context.Context, address string) *services.GeocodeResult
}

// Journal сохраняет примененные события
type Journal interface {
	Publish(event *models.Event) error
}

// Options задает зависимости дашборда
type Options struct {
	Session  *auth.Session
	Backend  Backend
	Router   Router
	Geocoder Geocoder
	Source   realtime.Source
	Journal  Journal
	// Position служит таймерным источником позиции агента; может быть nil
	Position PositionSource

	QueueSize        int
	TrackingEnabled  bool
	TrackingInterval time.Duration
	Log              *logger.Logger
}

// View представляет неизменяемое представление дашборда для читателей
type View struct {
	Role      models.Role            `json:"role"`
	UserID    int64                  `json:"user_id"`
	Home      auth.Permission        `json:"home"`
	Orders    []*models.Order        `json:"orders"`
	Users     []*models.User         `json:"users"`
	Vehicles  []*models.Vehicle      `json:"vehicles"`
	Locations []models.AgentLocation `json:"locations"`
	Markers   models.MarkerSet       `json:"markers"`
	Bounds    models.BoundingBox     `json:"bounds"`
	Routes    map[int64]models.Route `json:"routes"`
	Realtime  realtime.Status        `json:"realtime"`
	Version   uint64                 `json:"version"`
	UpdatedAt time.Time              `json:"updated_at"`

	snapshot *state.Snapshot
}

// Snapshot возвращает снимок состояния, из которого построено представление
func (v *View) Snapshot() *state.Snapshot { return v.snapshot }

// Online сообщает, подключен ли канал событий
func (v *View) Online() bool { return v.Realtime == realtime.StatusOnline }

// mutation выполняется только горутиной цикла; возвращает true, если состояние изменилось
type mutation struct {
	apply func() bool
	done  chan struct{}
}

// Dashboard представляет сессию одного пользователя
type Dashboard struct {
	opts       Options
	sess       *auth.Session
	log        *logrus.Entry
	reconciler *services.Reconciler

	// Поля ниже принадлежат горутине цикла
	st        *state.State
	routes    map[int64]models.Route
	routeGen  uint64
	routesKey string
	version   uint64

	view    atomic.Pointer[View]
	alive   atomic.Bool
	inbox   chan mutation
	channel *realtime.Channel
	tracker *Tracker
	journal chan *models.Event

	mu      sync.Mutex
	mounted bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// New создает дашборд для сессии
func New(opts Options) *Dashboard {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 256
	}
	if opts.Log == nil {
		opts.Log = logger.NewDiscard()
	}
	sess := opts.Session
	d := &Dashboard{
		opts: opts,
		sess: sess,
		log: opts.Log.Component("dashboard").WithFields(logrus.Fields{
			"user_id": sess.UserID(),
			"role":    sess.Role(),
		}),
		reconciler: services.NewReconciler(services.Scope{Role: sess.Role(), UserID: sess.UserID()}, opts.Log),
		st:         state.New(),
		routes:     make(map[int64]models.Route),
		inbox:      make(chan mutation, opts.QueueSize),
	}
	d.publish()
	return d
}

// Session возвращает сессию дашборда
func (d *Dashboard) Session() *auth.Session { return d.sess }

// View возвращает последнее опубликованное представление
func (d *Dashboard) View() *View { return d.view.Load() }

// Tracker возвращает трекер агента или nil
func (d *Dashboard) Tracker() *Tracker { return d.tracker }

// Mount загружает данные роли, открывает канал и запускает цикл
func (d *Dashboard) Mount(ctx context.Context) error {
	home, ok := auth.HomeView(d.sess.Role())
	if !ok {
		return fmt.Errorf("role %q has no dashboard: %w", d.sess.Role(), auth.ErrForbidden)
	}

	d.mu.Lock()
	if d.mounted {
		d.mu.Unlock()
		return ErrAlreadyMounted
	}
	d.mounted = true
	d.ctx, d.cancel = context.WithCancel(context.Background())
	d.alive.Store(true)
	d.mu.Unlock()

	d.log.WithField("home", home).Info("Mounting dashboard")

	snap := d.fetchAll(ctx)
	d.applySnapshot(snap)
	d.publish()

	if d.opts.Source != nil {
		d.channel = realtime.NewChannel(d.opts.Source, d.opts.QueueSize, d.opts.Log)
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			_ = d.channel.Run(d.ctx)
		}()
	}

	if d.opts.Journal != nil {
		d.journal = make(chan *models.Event, d.opts.QueueSize)
		d.wg.Add(1)
		go d.runJournal()
	}

	if d.sess.Role() == models.RoleAgent && d.opts.TrackingEnabled && d.tracker == nil {
		d.tracker = NewTracker(d.sess.UserID(), d.opts.Backend, d.opts.Position, d.opts.TrackingInterval, d.opts.Log)
		d.tracker.OnWrite(func(loc models.AgentLocation) {
			d.submit(func() bool {
				d.st.ApplyLocation(loc)
				return true
			})
		})
	}

	d.wg.Add(1)
	go d.loop()

	if d.tracker != nil {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			d.tracker.Run(d.ctx)
		}()
	}

	// Первое изменение в цикле запускает построение маршрутов
	<-d.submit(func() bool { return true })
	return nil
}

// Unmount закрывает канал, останавливает цикл и трекинг; поздние ответы отбрасываются
func (d *Dashboard) Unmount() {
	d.mu.Lock()
	if !d.mounted {
		d.mu.Unlock()
		return
	}
	d.mounted = false
	d.alive.Store(false)
	d.cancel()
	d.mu.Unlock()

	d.wg.Wait()
	d.log.Info("Dashboard unmounted")
}

// RealtimeStatus возвращает текущее состояние канала событий
func (d *Dashboard) RealtimeStatus() realtime.Status {
	if d.channel == nil {
		return realtime.StatusOffline
	}
	return d.channel.Status()
}

// Alive сообщает, смонтирован ли дашборд
func (d *Dashboard) Alive() bool { return d.alive.Load() }

func (d *Dashboard) loop() {
	defer d.wg.Done()

	var events <-chan *models.Event
	if d.channel != nil {
		events = d.channel.Events()
	}

	for {
		select {
		case <-d.ctx.Done():
			return

		case m := <-d.inbox:
			if m.apply() {
				d.afterChange()
			}
			if m.done != nil {
				close(m.done)
			}

		case ev, ok := <-events:
			if !ok {
				// Канал закрыт: живые обновления приостановлены, переподключения нет
				events = nil
				d.log.Warn("Realtime channel offline, continuing on last known state")
				d.publish()
				continue
			}
			d.handleEvent(ev)
		}
	}
}

func (d *Dashboard) handleEvent(ev *models.Event) {
	out := d.reconciler.Apply(d.st, ev)

	if d.journal != nil {
		select {
		case d.journal <- ev:
		default:
			d.log.WithField("event_id", ev.ID).Warn("Event journal queue full, dropping event")
		}
	}

	if out.Refetch != services.RefetchNone {
		d.refetch(out.Refetch)
	}
	if out.Changed {
		d.afterChange()
	}
}

func (d *Dashboard) runJournal() {
	defer d.wg.Done()
	for {
		select {
		case <-d.ctx.Done():
			return
		case ev := <-d.journal:
			if err := d.opts.Journal.Publish(ev); err != nil {
				d.log.WithError(err).Warn("Failed to journal event")
			}
		}
	}
}

// submit отправляет изменение в цикл; после Unmount изменения отбрасываются
func (d *Dashboard) submit(apply func() bool) <-chan struct{} {
	done := make(chan struct{})
	if !d.alive.Load() {
		close(done)
		return done
	}
	select {
	case d.inbox <- mutation{apply: apply, done: done}:
	case <-d.ctx.Done():
		close(done)
	}
	return done
}

// apply отправляет изменение и ждет его применения
func (d *Dashboard) apply(ctx context.Context, fn func() bool) error {
	if !d.alive.Load() {
		return ErrNotMounted
	}
	select {
	case <-d.submit(fn):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-d.ctx.Done():
		return ErrNotMounted
	}
}

// afterChange публикует представление и при смене набора пар запускает построение маршрутов
func (d *Dashboard) afterChange() {
	d.publish()

	if d.opts.Router == nil {
		return
	}
	pairs := services.RoutePairs(d.st.Snapshot())
	key := pairsKey(pairs)
	if key == d.routesKey {
		return
	}
	d.routesKey = key
	d.routeGen++
	gen := d.routeGen

	if len(pairs) == 0 {
		d.routes = make(map[int64]models.Route)
		d.publish()
		return
	}

	ctx := d.ctx
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		routes := d.opts.Router.ResolveBatch(ctx, pairs)
		d.submit(func() bool {
			// Результат устаревшего набора пар отбрасывается
			if gen != d.routeGen {
				return false
			}
			d.routes = routes
			d.publish()
			return false
		})
	}()
}

func (d *Dashboard) publish() {
	snap := d.st.Snapshot()
	markers := services.Fuse(snap)

	routes := make(map[int64]models.Route, len(d.routes))
	for id, r := range d.routes {
		routes[id] = r
	}

	home, _ := auth.HomeView(d.sess.Role())

	d.version++
	d.view.Store(&View{
		Role:      d.sess.Role(),
		UserID:    d.sess.UserID(),
		Home:      home,
		Orders:    snap.Orders,
		Users:     snap.Users,
		Vehicles:  snap.Vehicles,
		Locations: snap.Locations,
		Markers:   markers,
		Bounds:    services.MapBounds(markers),
		Routes:    routes,
		Realtime:  d.RealtimeStatus(),
		Version:   d.version,
		UpdatedAt: time.Now().UTC(),
		snapshot:  snap,
	})
}

func pairsKey(pairs []models.RoutePair) string {
	parts := make([]string, 0, len(pairs))
	for _, p := range pairs {
		parts = append(parts, fmt.Sprintf("%d:%.5f,%.5f:%.5f,%.5f", p.OrderID,
			p.Origin.Latitude, p.Origin.Longitude, p.Destination.Latitude, p.Destination.Longitude))
	}
	sort.Strings(parts)
	return strings.Join(parts, "|")
}
