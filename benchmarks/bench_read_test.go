package benchmarks

import (
	"fmt"
	"runtime"
	"testing"

	"github.com/Giulio2002/sdbx"
	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
)

// BenchmarkReadOps benchmarks read operations on pre-populated databases.
//
// Databases are cached in testdata/benchdb/ to speed up subsequent runs.
// To clear the cache: rm -rf benchmarks/testdata/benchdb/
func BenchmarkReadOps(b *testing.B) {
	b.Cleanup(CleanupBenchCache)

	sizes := []int{10_000, 100_000, 1_000_000}

	for _, size := range sizes {
		sizeName := formatWriteSize(size)

		// Sequential Read (cursor iteration)
		b.Run(fmt.Sprintf("SeqRead_%s/sdbx", sizeName), func(b *testing.B) {
			benchSeqReadSdbx(b, size)
		})
		b.Run(fmt.Sprintf("SeqRead_%s/mdbx", sizeName), func(b *testing.B) {
			benchSeqReadMdbx(b, size)
		})
		b.Run(fmt.Sprintf("SeqRead_%s/bolt", sizeName), func(b *testing.B) {
			benchSeqReadBolt(b, size)
		})
		b.Run(fmt.Sprintf("SeqRead_%s/rocksdb", sizeName), func(b *testing.B) {
			benchSeqReadRocksDB(b, size)
		})

		// Random Get (point lookups)
		b.Run(fmt.Sprintf("RandGet_%s/sdbx", sizeName), func(b *testing.B) {
			benchRandGetSdbx(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/mdbx", sizeName), func(b *testing.B) {
			benchRandGetMdbx(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/bolt", sizeName), func(b *testing.B) {
			benchRandGetBolt(b, size)
		})
		b.Run(fmt.Sprintf("RandGet_%s/rocksdb", sizeName), func(b *testing.B) {
			benchRandGetRocksDB(b, size)
		})

		// Random Seek (cursor seek)
		b.Run(fmt.Sprintf("RandSeek_%s/sdbx", sizeName), func(b *testing.B) {
			benchRandSeekSdbx(b, size)
		})
		b.Run(fmt.Sprintf("RandSeek_%s/mdbx", sizeName), func(b *testing.B) {
			benchRandSeekMdbx(b, size)
		})
		b.Run(fmt.Sprintf("RandSeek_%s/bolt", sizeName), func(b *testing.B) {
			benchRandSeekBolt(b, size)
		})
		b.Run(fmt.Sprintf("RandSeek_%s/rocksdb", sizeName), func(b *testing.B) {
			benchRandSeekRocksDB(b, size)
		})
	}
}

// shuffledSamples returns the sample keys in a deterministic random order.
func shuffledSamples(samples [][]byte) [][]byte {
	order := make([][]byte, len(samples))
	copy(order, samples)
	// Fisher-Yates shuffle
	for i := len(order) - 1; i > 0; i-- {
		j := int(uint64(i*17+31) % uint64(i+1))
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// ============ Sequential Read ============

func benchSeqReadSdbx(b *testing.B, numKeys int) {
	env, db, _, _ := getCachedPlainDB(b, numKeys)

	txn, err := env.BeginTxn(nil, sdbx.TxnReadOnly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	cursor, err := db.OpenCursor(txn)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			cursor.Get(nil, nil, sdbx.First)
		} else {
			cursor.Get(nil, nil, sdbx.Next)
		}
	}
}

func benchSeqReadMdbx(b *testing.B, numKeys int) {
	_, _, menv, _ := getCachedPlainDB(b, numKeys)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := menv.BeginTxn(nil, mdbxgo.Readonly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	dbi, err := txn.OpenDBI("bench", 0, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	cursor, err := txn.OpenCursor(dbi)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			cursor.Get(nil, nil, mdbxgo.First)
		} else {
			cursor.Get(nil, nil, mdbxgo.Next)
		}
	}
}

func benchSeqReadBolt(b *testing.B, numKeys int) {
	db := getCachedBoltDB(b, numKeys)

	tx, err := db.Begin(false)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()

	bucket := tx.Bucket([]byte("bench"))
	if bucket == nil {
		b.Fatal("bucket not found")
	}

	cursor := bucket.Cursor()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			cursor.First()
		} else {
			cursor.Next()
		}
	}
}

func benchSeqReadRocksDB(b *testing.B, numKeys int) {
	db := getCachedRocksDB(b, numKeys)

	ro := gorocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	iter := db.NewIterator(ro)
	defer iter.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		if i%numKeys == 0 {
			iter.SeekToFirst()
		} else {
			iter.Next()
		}
	}
}

// ============ Random Get (point lookups) ============

func benchRandGetSdbx(b *testing.B, numKeys int) {
	env, db, _, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	txn, err := env.BeginTxn(nil, sdbx.TxnReadOnly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		db.Get(txn, keys[i%len(keys)])
	}
}

func benchRandGetMdbx(b *testing.B, numKeys int) {
	_, _, menv, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := menv.BeginTxn(nil, mdbxgo.Readonly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	dbi, err := txn.OpenDBI("bench", 0, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		txn.Get(dbi, keys[i%len(keys)])
	}
}

func benchRandGetBolt(b *testing.B, numKeys int) {
	db := getCachedBoltDB(b, numKeys)
	_, _, _, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	tx, err := db.Begin(false)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()

	bucket := tx.Bucket([]byte("bench"))
	if bucket == nil {
		b.Fatal("bucket not found")
	}

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		bucket.Get(keys[i%len(keys)])
	}
}

func benchRandGetRocksDB(b *testing.B, numKeys int) {
	db := getCachedRocksDB(b, numKeys)
	_, _, _, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	ro := gorocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		val, _ := db.Get(ro, keys[i%len(keys)])
		if val != nil {
			val.Free()
		}
	}
}

// ============ Random Seek (cursor seek) ============

func benchRandSeekSdbx(b *testing.B, numKeys int) {
	env, db, _, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	txn, err := env.BeginTxn(nil, sdbx.TxnReadOnly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	cursor, err := db.OpenCursor(txn)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		cursor.Get(keys[i%len(keys)], nil, sdbx.Set)
	}
}

func benchRandSeekMdbx(b *testing.B, numKeys int) {
	_, _, menv, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := menv.BeginTxn(nil, mdbxgo.Readonly)
	if err != nil {
		b.Fatal(err)
	}
	defer txn.Abort()

	dbi, err := txn.OpenDBI("bench", 0, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	cursor, err := txn.OpenCursor(dbi)
	if err != nil {
		b.Fatal(err)
	}
	defer cursor.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		cursor.Get(keys[i%len(keys)], nil, mdbxgo.Set)
	}
}

func benchRandSeekBolt(b *testing.B, numKeys int) {
	db := getCachedBoltDB(b, numKeys)
	_, _, _, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	tx, err := db.Begin(false)
	if err != nil {
		b.Fatal(err)
	}
	defer tx.Rollback()

	bucket := tx.Bucket([]byte("bench"))
	if bucket == nil {
		b.Fatal("bucket not found")
	}

	cursor := bucket.Cursor()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		cursor.Seek(keys[i%len(keys)])
	}
}

func benchRandSeekRocksDB(b *testing.B, numKeys int) {
	db := getCachedRocksDB(b, numKeys)
	_, _, _, samples := getCachedPlainDB(b, numKeys)
	keys := shuffledSamples(samples)

	ro := gorocksdb.NewDefaultReadOptions()
	defer ro.Destroy()

	iter := db.NewIterator(ro)
	defer iter.Close()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		iter.Seek(keys[i%len(keys)])
	}
}
