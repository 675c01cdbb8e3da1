package signal

// Metrics receives relay events. monitoring.PrometheusCollector implements it.
type Metrics interface {
	ConnectionOpened()
	ConnectionClosed()
	RoomOpened()
	RoomClosed()
	MessageRelayed(eventType string)
	MessageDelivered(eventType string)
	DeliveryDropped(reason string)
	MessageRejected(reason string)
	PresenceEmitted(eventType string)
	JoinFailed(reason string)
}

type noopMetrics struct{}

func (noopMetrics) ConnectionOpened()       {}
func (noopMetrics) ConnectionClosed()       {}
func (noopMetrics) RoomOpened()             {}
func (noopMetrics) RoomClosed()             {}
func (noopMetrics) MessageRelayed(string)   {}
func (noopMetrics) MessageDelivered(string) {}
func (noopMetrics) DeliveryDropped(string)  {}
func (noopMetrics) MessageRejected(string)  {}
func (noopMetrics) PresenceEmitted(string)  {}
func (noopMetrics) JoinFailed(string)       {}

func orNoop(m Metrics) Metrics {
	if m == nil {
		return noopMetrics{}
	}
	return m
}
