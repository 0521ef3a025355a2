package kafka

import (
	"crypto/tls"
	"fmt"

	"github.com/IBM/sarama"
)

// buildSaramaConfig translates Config into a sarama producer configuration
func buildSaramaConfig(cfg Config) (*sarama.Config, error) {
	saramaCfg := sarama.NewConfig()

	version, err := sarama.ParseKafkaVersion(cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("parse kafka version failed: %w", err)
	}
	saramaCfg.Version = version
	saramaCfg.ClientID = cfg.ClientID

	// required by sarama.SyncProducer
	saramaCfg.Producer.Return.Successes = true
	saramaCfg.Producer.Return.Errors = true

	switch cfg.Producer.RequiredAcks {
	case 0:
		saramaCfg.Producer.RequiredAcks = sarama.NoResponse
	case -1:
		saramaCfg.Producer.RequiredAcks = sarama.WaitForAll
	default:
		saramaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	}

	saramaCfg.Producer.Timeout = cfg.Producer.Timeout
	saramaCfg.Producer.Retry.Max = cfg.Producer.RetryMax
	saramaCfg.Producer.Retry.Backoff = cfg.Producer.RetryBackoff
	saramaCfg.Producer.Idempotent = cfg.Producer.Idempotent
	if cfg.Producer.Idempotent {
		saramaCfg.Net.MaxOpenRequests = 1
	}

	switch cfg.Producer.Compression {
	case "gzip":
		saramaCfg.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		saramaCfg.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		saramaCfg.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		saramaCfg.Producer.Compression = sarama.CompressionZSTD
	default:
		saramaCfg.Producer.Compression = sarama.CompressionNone
	}

	if cfg.SASL != nil && cfg.SASL.Enabled {
		saramaCfg.Net.SASL.Enable = true
		saramaCfg.Net.SASL.User = cfg.SASL.Username
		saramaCfg.Net.SASL.Password = cfg.SASL.Password

		switch cfg.SASL.Mechanism {
		case "SCRAM-SHA-256":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA256
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA256}
			}
		case "SCRAM-SHA-512":
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypeSCRAMSHA512
			saramaCfg.Net.SASL.SCRAMClientGeneratorFunc = func() sarama.SCRAMClient {
				return &XDGSCRAMClient{HashGeneratorFcn: SHA512}
			}
		default:
			saramaCfg.Net.SASL.Mechanism = sarama.SASLTypePlaintext
		}
	}

	if cfg.TLS != nil && cfg.TLS.Enabled {
		saramaCfg.Net.TLS.Enable = true
		saramaCfg.Net.TLS.Config = &tls.Config{
			InsecureSkipVerify: cfg.TLS.InsecureSkipVerify,
		}
	}

	if err := saramaCfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sarama config: %w", err)
	}
	return saramaCfg, nil
}
