package pipeline

// Peer is a data source/destination with an associated connector (ie Kafka).
type Peer struct {
	connector     Connector
	Name          string `mapstructure:"name"`
	ConnectorName string `mapstructure:"connector"`
	// Config contains the connection config of underlying library
	// eg github.com/IBM/sarama.Config
	Config map[string]any `mapstructure:"config"`
	// Extra arguments for Connect, Pub, Sub methods
	Args []any `mapstructure:"args"`
}

// Connector returns the peer's connector instance. It is nil until the peer
// has been added to a Manager.
func (p *Peer) Connector() Connector {
	return p.connector
}
