// Package influxdb records factory telemetry in InfluxDB.
//
// Client implements factory.Observer: each finished cycle becomes one
// "cycle" point, one "process" point per process and one "stock" point per
// pooled item, all stamped with the cycle's start time. Writes are
// non-blocking and batched according to the influxdb section of the
// configuration (batch_size, flush_interval).
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//	scheduler.AddObserver(client)
//
// Asynchronous write failures are delivered to the SetOnError callback.
// InfluxDB is optional; Connect returns ErrDisabled when it is turned off.
package influxdb
