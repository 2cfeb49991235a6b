package ecu

import (
	"fmt"
	"sync"

	"github.com/golang/glog"
)

// HondaECU is the session node polling engine data from a Honda ECU.
type HondaECU struct {
	Connector Connector
	Table     byte
	Consumer  EngineDataConsumer

	lock    sync.RWMutex
	last    EngineData
	hasLast bool
	lastErr error
}

// NewHondaECU creates a session over the connector reading the
// engine table.
func NewHondaECU(conn Connector, consumer EngineDataConsumer) *HondaECU {
	return &HondaECU{Connector: conn, Table: TableEngine, Consumer: consumer}
}

// Name implements framework.Named.
func (s *HondaECU) Name() string {
	return "honda-ecu"
}

// Process implements framework.Node.
func (s *HondaECU) Process() {
	if s.Connector.State() != Connected {
		if err := s.Connector.Connect(); err != nil {
			glog.V(2).Infof("ECU connect: %v", err)
			s.setErr(err)
			return
		}
	}
	data, err := s.RequestTable(s.Table)
	if err != nil {
		glog.V(1).Infof("ECU table %#02x: %v", s.Table, err)
		s.setErr(err)
		return
	}
	engine, err := DecodeEngineData(data)
	if err != nil {
		glog.V(1).Infof("ECU table %#02x: %v", s.Table, err)
		s.setErr(err)
		return
	}
	s.lock.Lock()
	s.last, s.hasLast, s.lastErr = engine, true, nil
	s.lock.Unlock()
	if s.Consumer != nil {
		s.Consumer.EngineDataChanged(engine)
	}
}

// RequestTable reads a data table and returns its body.
func (s *HondaECU) RequestTable(table byte) ([]byte, error) {
	if err := s.Connector.WriteData(TableRequest(table).Payload()); err != nil {
		return nil, err
	}
	reply, err := s.Connector.ReadData()
	if err != nil {
		return nil, err
	}
	if len(reply) < 3 || reply[0] != TypeReply || reply[1] != SubTable || reply[2] != table {
		return nil, fmt.Errorf("%w: % x", ErrUnexpectedReply, reply)
	}
	return reply[3:], nil
}

// Last returns the most recent engine data, ok is false before the
// first successful read.
func (s *HondaECU) Last() (data EngineData, ok bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.last, s.hasLast
}

// Err returns the error of the last failed cycle, or nil after a
// successful read.
func (s *HondaECU) Err() error {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.lastErr
}

func (s *HondaECU) setErr(err error) {
	s.lock.Lock()
	s.lastErr = err
	s.lock.Unlock()
}
