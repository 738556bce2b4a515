package observability

import (
	"bytes"
	"fmt"
	"sort"

	"github.com/nupi-ai/notespointer/internal/eventbus"
)

// PrometheusExporter renders observability metrics in Prometheus text format.
type PrometheusExporter struct {
	bus     *eventbus.Bus
	counter *EventCounter
	link    func() eventbus.LinkState
}

// NewPrometheusExporter constructs an exporter backed by the provided bus and event counter.
func NewPrometheusExporter(bus *eventbus.Bus, counter *EventCounter) *PrometheusExporter {
	return &PrometheusExporter{
		bus:     bus,
		counter: counter,
	}
}

// WithLinkState enables the speaker notes link gauge.
func (e *PrometheusExporter) WithLinkState(provider func() eventbus.LinkState) {
	e.link = provider
}

// Export produces the metrics payload in Prometheus' text exposition format.
func (e *PrometheusExporter) Export() []byte {
	var buf bytes.Buffer

	e.writeEventCounters(&buf)
	e.writeDiscards(&buf)
	e.writeBusMetrics(&buf)
	e.writeLinkState(&buf)

	return buf.Bytes()
}

func (e *PrometheusExporter) writeEventCounters(buf *bytes.Buffer) {
	if e.counter == nil {
		return
	}

	counts := e.counter.Snapshot()
	if len(counts) == 0 {
		return
	}

	buf.WriteString("# HELP notespointer_eventbus_events_total Total number of published events per topic.\n")
	buf.WriteString("# TYPE notespointer_eventbus_events_total counter\n")

	topics := make([]string, 0, len(counts))
	for topic := range counts {
		topics = append(topics, string(topic))
	}
	sort.Strings(topics)
	for _, topicName := range topics {
		value := counts[eventbus.Topic(topicName)]
		fmt.Fprintf(buf, "notespointer_eventbus_events_total{topic=%q} %d\n", topicName, value)
	}
}

func (e *PrometheusExporter) writeDiscards(buf *bytes.Buffer) {
	if e.counter == nil {
		return
	}
	discards := e.counter.Discards()
	if len(discards) == 0 {
		return
	}

	buf.WriteString("# HELP notespointer_channel_discarded_total Messages dropped by the channel per reason.\n")
	buf.WriteString("# TYPE notespointer_channel_discarded_total counter\n")

	reasons := make([]string, 0, len(discards))
	for reason := range discards {
		reasons = append(reasons, string(reason))
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		fmt.Fprintf(buf, "notespointer_channel_discarded_total{reason=%q} %d\n", reason, discards[eventbus.DiscardReason(reason)])
	}
}

func (e *PrometheusExporter) writeBusMetrics(buf *bytes.Buffer) {
	if e.bus == nil {
		return
	}

	metrics := e.bus.Metrics()

	buf.WriteString("# HELP notespointer_eventbus_publish_total Total number of events published on the bus.\n")
	buf.WriteString("# TYPE notespointer_eventbus_publish_total counter\n")
	fmt.Fprintf(buf, "notespointer_eventbus_publish_total %d\n", metrics.PublishTotal)

	buf.WriteString("# HELP notespointer_eventbus_dropped_total Total number of events dropped by the bus.\n")
	buf.WriteString("# TYPE notespointer_eventbus_dropped_total counter\n")
	fmt.Fprintf(buf, "notespointer_eventbus_dropped_total %d\n", metrics.DroppedTotal)
}

func (e *PrometheusExporter) writeLinkState(buf *bytes.Buffer) {
	if e.link == nil {
		return
	}
	current := e.link()

	buf.WriteString("# HELP notespointer_notes_link Speaker notes link state (1 for the current state).\n")
	buf.WriteString("# TYPE notespointer_notes_link gauge\n")
	for _, state := range []eventbus.LinkState{eventbus.LinkDisconnected, eventbus.LinkPending, eventbus.LinkConnected} {
		value := 0
		if state == current {
			value = 1
		}
		fmt.Fprintf(buf, "notespointer_notes_link{state=%q} %d\n", state, value)
	}
}
