package tui

import (
	"sort"
	"time"

	"github.com/muurk/upnpctl/internal/protocol"
)

// goneLinger is how long a device stays listed after ssdp:byebye.
const goneLinger = 30 * time.Second

// Status is the presence state of a registry entry.
type Status int

const (
	StatusAlive Status = iota
	StatusUpdated
	StatusGone
)

func (s Status) String() string {
	switch s {
	case StatusUpdated:
		return "updated"
	case StatusGone:
		return "gone"
	default:
		return "alive"
	}
}

// Entry is one device in the monitor registry.
type Entry struct {
	Device    protocol.Announcement
	Status    Status
	Source    string // "search" or "notify"
	FirstSeen time.Time
	LastSeen  time.Time
	Expires   time.Time // zero when the device sent no max-age

	Description *protocol.DeviceDescription
}

// Key returns the identity used to deduplicate entries: USN, or Location
// when the device sent no USN.
func (e Entry) Key() string {
	return announcementKey(e.Device)
}

// Name returns the friendly name once the description is loaded, else USN.
func (e Entry) Name() string {
	if e.Description != nil && e.Description.FriendlyName != "" {
		return e.Description.FriendlyName
	}
	if e.Device.USN != "" {
		return e.Device.USN
	}
	return e.Device.Location
}

func announcementKey(a protocol.Announcement) string {
	if a.USN != "" {
		return a.USN
	}
	return a.Location
}

// Registry tracks devices keyed by USN. It is not safe for concurrent use;
// the monitor model owns it and mutates it only from Update.
type Registry struct {
	entries map[string]*Entry
	now     func() time.Time
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]*Entry),
		now:     time.Now,
	}
}

// Observe records an announcement from the given source and reports
// whether the device is new to the registry.
func (r *Registry) Observe(a protocol.Announcement, source string) bool {
	key := announcementKey(a)
	if key == "" {
		return false
	}

	now := r.now()
	e, ok := r.entries[key]
	if !ok {
		e = &Entry{FirstSeen: now}
		r.entries[key] = e
	} else if e.Device.Location != a.Location {
		// a moved device must be described again
		e.Description = nil
	}

	e.Device = a
	e.Source = source
	e.Status = StatusAlive
	e.LastSeen = now
	e.Expires = time.Time{}
	if age := a.MaxAge(); age > 0 {
		e.Expires = now.Add(time.Duration(age) * time.Second)
	}
	return !ok
}

// Apply folds a presence notification into the registry and returns the key
// of the affected entry. A byebye for an unknown USN changes nothing and
// returns "".
func (r *Registry) Apply(ev protocol.PresenceEvent) string {
	switch ev.Kind {
	case protocol.PresenceAlive:
		r.Observe(ev.Device, "notify")
		return announcementKey(ev.Device)

	case protocol.PresenceUpdate:
		r.Observe(ev.Device, "notify")
		key := announcementKey(ev.Device)
		if e, ok := r.entries[key]; ok {
			e.Status = StatusUpdated
		}
		return key

	case protocol.PresenceByeBye:
		e, ok := r.entries[ev.USN]
		if !ok {
			return ""
		}
		e.Status = StatusGone
		e.LastSeen = r.now()
		return ev.USN
	}
	return ""
}

// SetDescription attaches a fetched description to an entry.
func (r *Registry) SetDescription(key string, desc protocol.DeviceDescription) bool {
	e, ok := r.entries[key]
	if !ok {
		return false
	}
	e.Description = &desc
	return true
}

// Get returns a copy of the entry stored under key.
func (r *Registry) Get(key string) (Entry, bool) {
	e, ok := r.entries[key]
	if !ok {
		return Entry{}, false
	}
	return *e, true
}

// Prune removes entries whose max-age has lapsed and byebye'd entries older
// than goneLinger. It returns the removed keys.
func (r *Registry) Prune() []string {
	now := r.now()
	var removed []string
	for key, e := range r.entries {
		expired := !e.Expires.IsZero() && now.After(e.Expires)
		departed := e.Status == StatusGone && now.Sub(e.LastSeen) > goneLinger
		if expired || departed {
			delete(r.entries, key)
			removed = append(removed, key)
		}
	}
	sort.Strings(removed)
	return removed
}

// Clear drops every entry
func (r *Registry) Clear() {
	r.entries = make(map[string]*Entry)
}

// Len returns the number of entries
func (r *Registry) Len() int {
	return len(r.entries)
}

// Counts returns how many entries are present and how many have left.
func (r *Registry) Counts() (present, gone int) {
	for _, e := range r.entries {
		if e.Status == StatusGone {
			gone++
		} else {
			present++
		}
	}
	return present, gone
}

// Entries returns copies of all entries, ordered by name then key.
func (r *Registry) Entries() []Entry {
	out := make([]Entry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool {
		if ni, nj := out[i].Name(), out[j].Name(); ni != nj {
			return ni < nj
		}
		return out[i].Key() < out[j].Key()
	})
	return out
}
