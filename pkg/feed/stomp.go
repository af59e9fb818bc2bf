package feed

import (
	"context"
	"errors"

	"github.com/go-stomp/stomp/v3"
	"github.com/rs/zerolog/log"
	"github.com/travigo/railtracker/pkg/util"
)

type StompClient struct {
	Address   string
	Username  string
	Password  string
	QueueName string

	conn *stomp.Conn
}

// NewStompClient reads TRAVIGO_STOMP_ADDRESS, TRAVIGO_STOMP_USERNAME and TRAVIGO_STOMP_PASSWORD
func NewStompClient(queueName string) *StompClient {
	env := util.GetEnvironmentVariables()

	address := env["TRAVIGO_STOMP_ADDRESS"]
	if address == "" {
		address = "localhost:61613"
	}

	return &StompClient{
		Address:   address,
		Username:  env["TRAVIGO_STOMP_USERNAME"],
		Password:  env["TRAVIGO_STOMP_PASSWORD"],
		QueueName: queueName,
	}
}

func (s *StompClient) Connect() error {
	var stompOptions []func(*stomp.Conn) error = []func(*stomp.Conn) error{
		stomp.ConnOpt.Login(s.Username, s.Password),
	}

	conn, err := stomp.Dial("tcp", s.Address, stompOptions...)
	if err != nil {
		return err
	}
	s.conn = conn

	log.Info().Str("address", s.Address).Msg("Connected to STOMP server")

	return nil
}

func (s *StompClient) Conn() *stomp.Conn {
	return s.conn
}

func (s *StompClient) Disconnect() error {
	if s.conn == nil {
		return nil
	}

	return s.conn.Disconnect()
}

// Run feeds every departure message on the queue to the handler until ctx is done
func (s *StompClient) Run(ctx context.Context, handler DeparturesHandler) error {
	sub, err := s.conn.Subscribe(s.QueueName, stomp.AckAuto)
	if err != nil {
		return err
	}
	defer sub.Unsubscribe()

	log.Info().Str("queue", s.QueueName).Msg("Listening for departures")

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C:
			if !ok {
				return errors.New("departure subscription closed")
			}
			if msg.Err != nil {
				return msg.Err
			}

			if err := HandleMessage(ctx, handler, msg.Body); errors.Is(err, ErrUpstream) {
				log.Warn().Err(err).Msg("Station feed responded with an error")
			} else if err != nil {
				log.Error().Err(err).Msg("Failed to process departures")
			}
		}
	}
}
