// Package kafka provides a Kafka peer for pipelines, built on IBM/sarama.
//
// As a source the peer joins a consumer group and delivers every message of
// the configured topics. Offsets are marked only when the pipeline
// acknowledges a delivery, so a record is committed after its output was
// published (at-least-once).
//
// As a sink the peer produces each record with a sync producer that waits for
// all in-sync replicas.
//
// Message mapping, both directions:
// - Key: record key; a null key is an absent key
// - Value: record value; a null value (tombstone) is an absent value
// - Headers: record headers, order and duplicates preserved
//
// Example peer config:
//
//	peers:
//	- name: orders-json
//	  connector: kafka
//	  config:
//	    brokers: ["localhost:9092"]
//	    source:
//	      group: json2avro
//	      topics: ["orders"]
//	      initialOffset: oldest
//	- name: orders-avro
//	  connector: kafka
//	  config:
//	    brokers: ["localhost:9092"]
//	    sasl: {enable: true, algorithm: sha512, username: u, password: p}
//	    sink:
//	      topic: orders.avro
//	      createTopic: true
package kafka
