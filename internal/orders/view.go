package orders

import (
	"net/url"
	"strconv"
	"strings"
)

var stageLabels = map[LifecycleStatus]string{
	Waiting:          "Waiting in print queue",
	Printing:         "Printing",
	Packing:          "Packing",
	Shipped:          "Shipped",
	Delivered:        "Delivered",
	RefundPending:    "Refund requested",
	RefundProcessing: "Refund processing",
	RefundProcessed:  "Refund processed",
}

// StageView is what a client renders for the order's current stage.
type StageView struct {
	Track    string   `json:"track"`
	Stage    string   `json:"stage"`
	Label    string   `json:"label"`
	Stages   []string `json:"stages"`
	Position int      `json:"position"`

	// Seconds the live timer starts from; only set for waiting and printing.
	CountdownSeconds *int64 `json:"countdown_seconds,omitempty"`
	TrackingURL      string `json:"tracking_url,omitempty"`
	// Delivered sits on shipped's position with an opened-package marker.
	Opened bool `json:"opened,omitempty"`
}

// View derives the display data for o. trackingTemplate holds a single %s
// for the escaped tracking number.
func View(o Order, trackingTemplate string) StageView {
	s := o.Status
	v := StageView{
		Track:    s.Track().String(),
		Stage:    s.Name(),
		Label:    stageLabels[s],
		Stages:   Stages(s.Track()),
		Position: s.Index(),
	}
	if s.IsRefund() {
		return v
	}

	switch s {
	case Waiting, Printing:
		secs := CountdownSeconds(o)
		v.CountdownSeconds = &secs
	case Shipped:
		v.TrackingURL = TrackingURL(trackingTemplate, o.TrackingNumber)
	case Delivered:
		v.Position = Shipped.Index()
		v.Opened = true
	}
	return v
}

// CountdownSeconds is the timer seed for the current stage: queue time while
// waiting, print time while printing, zero otherwise.
func CountdownSeconds(o Order) int64 {
	var ms int64
	switch o.Status {
	case Waiting:
		ms = o.QueueTimeMs
	case Printing:
		ms = o.PrintTimeMs
	}
	if ms < 0 {
		return 0
	}
	return ms / 1000
}

// CountdownKey changes whenever any field feeding the countdown changes.
func CountdownKey(o Order) string {
	return o.Status.String() + ":" + strconv.FormatInt(o.QueueTimeMs, 10) + ":" + strconv.FormatInt(o.PrintTimeMs, 10)
}

// TrackingURL substitutes the query-escaped number for the first %s in
// template. Any other % in template is kept literally.
func TrackingURL(template string, number *string) string {
	if number == nil || *number == "" || !strings.Contains(template, "%s") {
		return ""
	}
	return strings.Replace(template, "%s", url.QueryEscape(*number), 1)
}
