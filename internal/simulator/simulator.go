package simulator

import (
	"context"
	"encoding/json"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"thermal_dashboard/internal/logger"
	"thermal_dashboard/internal/models"
)

// ----------- Simulation constants -----------
const (
	AmbientC          = 25.0   // ambient temperature °C
	CoolingPerPwm     = 0.006  // share of the heat load removed per PWM percent
	ApproachPerSec    = 0.08   // fraction of the gap to equilibrium closed per second
	NoiseC            = 0.15   // temperature jitter °C
	MaxFanRPM         = 5200.0 // RPM at 100% duty
	StallPwmPct       = 10     // below this duty the fan stands still
	MinHistorySeconds = 10
	MaxWatchdogSec    = 0xFFFF
	MaxWatchdogRetry  = 0xFFFF
)

// Config describes the simulated controller.
type Config struct {
	Tick           time.Duration
	HistorySeconds int
	Sensors        []string
	Fans           []string
	MinPwmPct      int
	PwmStepPct     int
	InitialPwmPct  int
	Retry          time.Duration // advertised to stream clients
	Seed           int64
}

// DefaultConfig mirrors the board: four NTC sensors plus the Pico die sensor and
// two fans.
func DefaultConfig() Config {
	return Config{
		Tick:           time.Second,
		HistorySeconds: 600,
		Sensors:        []string{"NTC_1", "NTC_2", "NTC_3", "NTC_4", "RPi_Pico"},
		Fans:           []string{"System_FAN_J17", "CM4_FAN_J18"},
		MinPwmPct:      0,
		PwmStepPct:     5,
		InitialPwmPct:  50,
		Retry:          3 * time.Second,
		Seed:           1,
	}
}

func (c Config) normalized() Config {
	d := DefaultConfig()
	if c.Tick <= 0 {
		c.Tick = d.Tick
	}
	if c.HistorySeconds < MinHistorySeconds {
		c.HistorySeconds = MinHistorySeconds
	}
	if len(c.Sensors) == 0 {
		c.Sensors = d.Sensors
	}
	if len(c.Fans) == 0 {
		c.Fans = d.Fans
	}
	c.MinPwmPct = clampInt(c.MinPwmPct, 0, 100)
	if c.PwmStepPct <= 0 {
		c.PwmStepPct = 1
	}
	c.InitialPwmPct = clampInt(c.InitialPwmPct, c.MinPwmPct, 100)
	if c.Retry <= 0 {
		c.Retry = d.Retry
	}
	return c
}

// Simulator is an in-process stand-in for the fan/thermal controller.
type Simulator struct {
	cfg    Config
	log    *logger.Logger
	onQuit func()

	mu       sync.Mutex
	rnd      *rand.Rand
	paused   bool
	fault    string
	pwm      map[string]int
	watchdog models.WatchdogSettings
	ts       []float64
	temps    map[string][]float64
	rpm      map[string][]float64
	current  map[string]float64
	seq      uint64
	subs     map[chan frame]struct{}
	closed   bool
}

type frame struct {
	seq     uint64
	payload string
}

// New returns a simulator. onQuit runs once when a client calls the quit
// endpoint.
func New(cfg Config, onQuit func(), log *logger.Logger) *Simulator {
	cfg = cfg.normalized()
	s := &Simulator{
		cfg:      cfg,
		log:      log,
		onQuit:   onQuit,
		rnd:      rand.New(rand.NewSource(cfg.Seed)),
		pwm:      make(map[string]int, len(cfg.Fans)),
		watchdog: models.WatchdogSettings{TimeoutSec: 20},
		temps:    make(map[string][]float64, len(cfg.Sensors)),
		rpm:      make(map[string][]float64, len(cfg.Fans)),
		current:  make(map[string]float64, len(cfg.Sensors)),
		subs:     make(map[chan frame]struct{}),
	}
	for _, f := range cfg.Fans {
		s.pwm[f] = s.quantize(cfg.InitialPwmPct)
	}
	for i, name := range cfg.Sensors {
		s.current[name] = s.equilibrium(i)
	}
	return s
}

// Run ticks at the configured interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			s.close()
			return
		case now := <-t.C:
			s.step(now)
		}
	}
}

// step samples every sensor once and pushes a snapshot unless paused.
func (s *Simulator) step(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	dt := s.cfg.Tick.Seconds()
	for i, name := range s.cfg.Sensors {
		target := s.equilibrium(i)
		cur := s.current[name]
		cur += (target - cur) * math.Min(1, ApproachPerSec*dt)
		cur += (s.rnd.Float64()*2 - 1) * NoiseC
		s.current[name] = cur
		s.temps[name] = s.push(s.temps[name], round1(cur))
	}
	for _, fan := range s.cfg.Fans {
		s.rpm[fan] = s.push(s.rpm[fan], s.fanRPM(fan))
	}
	s.ts = s.push(s.ts, float64(now.Unix()))

	if s.paused {
		return
	}
	s.seq++
	payload, err := s.snapshotLocked()
	if err != nil {
		if s.log != nil {
			s.log.Errorw("sim_encode_failed", "err", err)
		}
		return
	}
	for ch := range s.subs {
		select {
		case ch <- frame{seq: s.seq, payload: payload}:
		default:
			// full snapshots supersede each other; a slow reader just skips one
		}
	}
}

func (s *Simulator) push(series []float64, v float64) []float64 {
	if len(series) == s.cfg.HistorySeconds {
		series = series[1:]
	}
	return append(series, v)
}

func (s *Simulator) snapshotLocked() (string, error) {
	seq := s.seq
	snap := models.StateSnapshot{
		TimestampSec:  s.ts,
		TemperatureC:  s.temps,
		TachometerRPM: s.rpm,
		Seq:           &seq,
	}
	b, err := json.Marshal(snap)
	return string(b), err
}

// equilibrium is where sensor i settles for the current average fan duty.
func (s *Simulator) equilibrium(i int) float64 {
	load := 30.0 + 8.0*float64(i)
	avg := 0.0
	for _, v := range s.pwm {
		avg += float64(v)
	}
	if len(s.pwm) > 0 {
		avg /= float64(len(s.pwm))
	}
	return AmbientC + load*math.Max(0, 1-CoolingPerPwm*avg)
}

func (s *Simulator) fanRPM(fan string) float64 {
	p := s.pwm[fan]
	if p < StallPwmPct {
		return 0
	}
	return math.Round(MaxFanRPM*float64(p)/100 + (s.rnd.Float64()*2-1)*20)
}

// quantize clamps a requested duty to [MinPwmPct, 100] and rounds it down
// to the PWM step the hardware supports.
func (s *Simulator) quantize(pct int) int {
	pct = clampInt(pct, s.cfg.MinPwmPct, 100)
	pct -= pct % s.cfg.PwmStepPct
	if pct < s.cfg.MinPwmPct {
		pct = s.cfg.MinPwmPct
	}
	return pct
}

func (s *Simulator) subscribe() (<-chan frame, func()) {
	ch := make(chan frame, 4)
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	s.subs[ch] = struct{}{}
	if len(s.ts) > 0 && !s.paused {
		if payload, err := s.snapshotLocked(); err == nil {
			ch <- frame{seq: s.seq, payload: payload}
		}
	}
	s.mu.Unlock()

	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.subs[ch]; ok {
			delete(s.subs, ch)
			close(ch)
		}
	}
}

func (s *Simulator) close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.closed = true
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}

// SetPaused mirrors the device's /api/stop and /api/start.
func (s *Simulator) SetPaused(p bool) {
	s.mu.Lock()
	s.paused = p
	s.mu.Unlock()
}

// SetFault makes every settings request answer {"error": msg} until it is
// called again with "".
func (s *Simulator) SetFault(msg string) {
	s.mu.Lock()
	s.fault = msg
	s.mu.Unlock()
}

// Status is the document served on /api/status.
func (s *Simulator) Status() models.DeviceStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	wd := s.watchdog
	st := models.DeviceStatus{
		FanPwmPct:     make(map[string]float64, len(s.pwm)),
		Watchdog:      &wd,
		TemperatureC:  make(map[string]float64, len(s.temps)),
		TachometerRPM: make(map[string]float64, len(s.rpm)),
	}
	for k, v := range s.pwm {
		st.FanPwmPct[k] = float64(v)
	}
	for k, v := range s.temps {
		if len(v) > 0 {
			st.TemperatureC[k] = v[len(v)-1]
		}
	}
	for k, v := range s.rpm {
		if len(v) > 0 {
			st.TachometerRPM[k] = v[len(v)-1]
		}
	}
	return st
}

// Fans lists the simulated fan names in order.
func (s *Simulator) Fans() []string {
	out := append([]string(nil), s.cfg.Fans...)
	sort.Strings(out)
	return out
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }
