package metrics

// NoopCollector is a no-op implementation of the Collector interface, used
// when a caller never configured metrics collection.
type NoopCollector struct{}

func (n *NoopCollector) ConnectionOpened(protocol string) {}
func (n *NoopCollector) ConnectionClosed(protocol string) {}
func (n *NoopCollector) TLSEstablished(protocol string)   {}

func (n *NoopCollector) AuthAttempt(protocol, mechanism string, success bool) {}
func (n *NoopCollector) CommandProcessed(protocol, command string)            {}
func (n *NoopCollector) MessageRetrieved(protocol string, sizeBytes int64)    {}
func (n *NoopCollector) SendStatus(result string)                            {}
