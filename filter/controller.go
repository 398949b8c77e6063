// Package filter holds the state of a search/listing filter and emits a
// normalized snapshot every time one of its fields changes.
//
// Period and operator changes react immediately. Search text is debounced:
// only the value present once typing has paused for the debounce window is
// emitted.
package filter

import (
	"reflect"
	"sync"
	"time"

	"tablefilter/models"
	"tablefilter/period"

	"github.com/sirupsen/logrus"
)

// DefaultEventBuffer is the capacity of the Events channel.
const DefaultEventBuffer = 16

// Status is the availability of the whole field set.
type Status int

const (
	StatusEnabled Status = iota
	StatusDisabled
)

func (s Status) String() string {
	if s == StatusDisabled {
		return "disabled"
	}
	return "enabled"
}

// Options configures a Controller. Start from DefaultOptions.
type Options struct {
	// PeriodCatalog is the list offered by the period selector.
	// Empty selects models.DefaultPeriodCatalog.
	PeriodCatalog []models.Period
	// DefaultPeriodIndex is the catalog index to pass to Initialize; -1 for none.
	DefaultPeriodIndex int
	Loading            bool

	// Display-only flags, carried for the rendering layer.
	ShowFilterButton bool
	ShowOperator     bool
	ShowPeriodFilter bool

	DebounceWindow time.Duration
	EventBuffer    int
	Now            func() time.Time
	Logger         logrus.FieldLogger
}

func DefaultOptions() Options {
	return Options{
		DefaultPeriodIndex: -1,
		ShowFilterButton:   true,
		DebounceWindow:     DefaultDebounceWindow,
		EventBuffer:        DefaultEventBuffer,
	}
}

// Controller owns a FieldStore and turns field changes into ResolvedFilter
// events.
type Controller struct {
	mu sync.Mutex

	store   FieldStore
	opts    Options
	catalog []models.Period
	now     func() time.Time
	log     logrus.FieldLogger

	status Status
	bounds models.Bounds
	events chan models.ResolvedFilter
	search *Debouncer

	unsubscribe []func()
	closed      bool
}

// New seeds store with the initial field values, subscribes to it and applies
// opts.Loading. It does not select the default period; call Initialize.
func New(store FieldStore, opts Options) *Controller {
	if len(opts.PeriodCatalog) == 0 {
		opts.PeriodCatalog = models.DefaultPeriodCatalog()
	}
	if opts.DebounceWindow <= 0 {
		opts.DebounceWindow = DefaultDebounceWindow
	}
	if opts.EventBuffer <= 0 {
		opts.EventBuffer = DefaultEventBuffer
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	c := &Controller{
		store:   store,
		opts:    opts,
		catalog: append([]models.Period(nil), opts.PeriodCatalog...),
		now:     opts.Now,
		log:     opts.Logger.WithField("component", "filter"),
		events:  make(chan models.ResolvedFilter, opts.EventBuffer),
	}
	c.search = NewDebouncer(opts.DebounceWindow, c.OnSearchTextChange)

	store.Set(FieldSearch, nil)
	store.Set(FieldOperator, models.OperatorOr)
	store.Set(FieldPeriod, nil)
	store.Set(FieldRangeStart, nil)
	store.Set(FieldRangeEnd, nil)

	c.unsubscribe = []func(){
		store.Subscribe(FieldSearch, func(any) { c.search.Trigger() }),
		store.Subscribe(FieldOperator, func(any) { c.OnOperatorChange() }),
		store.Subscribe(FieldPeriod, func(v any) { c.OnPeriodChange(periodValue(v)) }),
	}

	c.SetLoading(opts.Loading)
	return c
}

// Events delivers one ResolvedFilter per emission. It is closed by Close.
func (c *Controller) Events() <-chan models.ResolvedFilter {
	return c.events
}

// Catalog returns a copy of the period catalog.
func (c *Controller) Catalog() []models.Period {
	return append([]models.Period(nil), c.catalog...)
}

// Options returns the options the controller was built with, defaults applied.
func (c *Controller) Options() Options {
	opts := c.opts
	opts.PeriodCatalog = c.Catalog()
	return opts
}

// SetLoading moves the field set to Disabled while loading and back to
// Enabled afterwards. Values are never touched and nothing is emitted.
func (c *Controller) SetLoading(loading bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.status = StatusEnabled
	if loading {
		c.status = StatusDisabled
	}
	usable := c.status == StatusEnabled
	for _, f := range Fields {
		c.store.SetEnabled(f, usable)
	}
	c.log.WithField("status", c.status).Debug("filter availability changed")
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// FieldsUsable reports whether the fields currently accept edits.
func (c *Controller) FieldsUsable() bool {
	return c.Status() == StatusEnabled
}

// Bounds returns the date-entry guidance computed for the custom range.
func (c *Controller) Bounds() models.Bounds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bounds
}

// SelectedPeriod returns the current period selection, or nil.
func (c *Controller) SelectedPeriod() *models.Period {
	return periodValue(c.store.Get(FieldPeriod))
}

// Initialize selects the catalog entry at index, which runs the period change
// path. A negative index selects nothing.
func (c *Controller) Initialize(index int) {
	if index < 0 {
		return
	}
	if index >= len(c.catalog) {
		c.log.WithFields(logrus.Fields{
			"index":        index,
			"catalog_size": len(c.catalog),
		}).Warn("default period index out of range, ignoring")
		return
	}
	c.store.Set(FieldPeriod, c.catalog[index])
}

// OnSearchTextChange emits the current filter. It runs once the debounce
// window has passed since the last search edit.
func (c *Controller) OnSearchTextChange() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.emitLocked("search")
}

// OnOperatorChange emits only when there is search text to combine.
func (c *Controller) OnOperatorChange() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if text := searchValue(c.store.Get(FieldSearch)); text == nil || *text == "" {
		return
	}
	c.emitLocked("operator")
}

// OnPeriodChange reacts to a new period selection.
//
// A nil selection clears the range and emits. A custom range recomputes the
// entry bounds and emits only once both ends are set. A named period
// overwrites the range with the resolved one and emits.
func (c *Controller) OnPeriodChange(selected *models.Period) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch {
	case selected == nil:
		c.store.Set(FieldRangeStart, nil)
		c.store.Set(FieldRangeEnd, nil)
		c.emitLocked("period")
	case selected.CustomRange:
		c.customRangeLocked()
	default:
		if !period.Known(selected.Period) {
			c.log.WithField("period", selected.Period).Warn("unknown period, using empty range")
		}
		r := period.Resolve(selected.Period, c.now())
		c.store.Set(FieldRangeStart, r.Start)
		c.store.Set(FieldRangeEnd, r.End)
		c.emitLocked("period")
	}
}

// OnRangeChange re-runs the custom range path after an explicit date edit.
// It does nothing unless the custom range is selected.
func (c *Controller) OnRangeChange() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if p := periodValue(c.store.Get(FieldPeriod)); p != nil && p.CustomRange {
		c.customRangeLocked()
	}
}

// Close stops the debounce timer, detaches from the store and closes Events.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.search.Stop()
	for _, unsubscribe := range c.unsubscribe {
		unsubscribe()
	}
	close(c.events)
}

func (c *Controller) customRangeLocked() {
	start := c.store.Get(FieldRangeStart)
	end := c.store.Get(FieldRangeEnd)

	c.bounds = models.Bounds{}
	if t, ok := models.AsTime(start); ok {
		minEnd := period.StartOfDay(t)
		c.bounds.MinEnd = &minEnd
	}
	if t, ok := models.AsTime(end); ok {
		maxStart := period.StartOfDay(t)
		c.bounds.MaxStart = &maxStart
	}

	if isSet(start) && isSet(end) {
		c.emitLocked("custom_range")
	}
}

func (c *Controller) emitLocked(trigger string) {
	if c.closed {
		return
	}

	rf := models.ResolvedFilter{
		SearchText:     searchValue(c.store.Get(FieldSearch)),
		Operator:       operatorValue(c.store.Get(FieldOperator)),
		RangeStart:     c.store.Get(FieldRangeStart),
		RangeEnd:       normalizeEnd(c.store.Get(FieldRangeEnd)),
		SelectedPeriod: periodValue(c.store.Get(FieldPeriod)),
	}

	select {
	case c.events <- rf:
		c.log.WithFields(logrus.Fields{
			"trigger":  trigger,
			"search":   rf.Search(),
			"operator": rf.Operator,
		}).Debug("filter emitted")
	default:
		c.log.WithField("trigger", trigger).Warn("filter event dropped, consumer is not keeping up")
	}
}

// normalizeEnd moves a date-valued end to the last millisecond of its day.
// Values that are not dates are returned as they are.
func normalizeEnd(v any) any {
	t, ok := models.AsTime(v)
	if !ok {
		return v
	}
	return period.EndOfDay(t)
}

// isSet treats nil and nil pointers as unset. Any other value counts, dates
// or not.
func isSet(v any) bool {
	if v == nil {
		return false
	}
	rv := reflect.ValueOf(v)
	return rv.Kind() != reflect.Pointer || !rv.IsNil()
}

func searchValue(v any) *string {
	switch s := v.(type) {
	case string:
		return &s
	case *string:
		if s == nil {
			return nil
		}
		text := *s
		return &text
	}
	return nil
}

func operatorValue(v any) models.Operator {
	switch o := v.(type) {
	case models.Operator:
		return o
	case models.OperatorOption:
		return o.ID
	case string:
		return models.Operator(o)
	}
	return ""
}

func periodValue(v any) *models.Period {
	switch p := v.(type) {
	case models.Period:
		return &p
	case *models.Period:
		if p == nil {
			return nil
		}
		cp := *p
		return &cp
	}
	return nil
}
