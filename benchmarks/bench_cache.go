package benchmarks

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/Giulio2002/sdbx"
	mdbxgo "github.com/erigontech/mdbx-go/mdbx"
	"github.com/tecbot/gorocksdb"
	bolt "go.etcd.io/bbolt"
)

// Cached benchmark database directory
const benchCacheDir = "testdata/benchdb"

var (
	cacheMu     sync.Mutex
	sdbxEnvs    = make(map[string]*sdbx.Env)
	sdbxDBs     = make(map[string]*sdbx.Database)
	mdbxEnvs    = make(map[string]*mdbxgo.Env)
	boltDBs     = make(map[string]*bolt.DB)
	rocksDBs    = make(map[string]*gorocksdb.DB)
	sampleCache = make(map[string][][]byte)
)

// getCachedPlainDB returns cached plain databases for the handle layer
// and the raw engine, creating and populating them if needed. Both hold
// the same keys, so per-operation numbers are directly comparable.
func getCachedPlainDB(b *testing.B, size int) (*sdbx.Env, *sdbx.Database, *mdbxgo.Env, [][]byte) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("plain_%d", size)
	sdbxPath := filepath.Join(benchCacheDir, fmt.Sprintf("plain_%d_sdbx.db", size))
	mdbxPath := filepath.Join(benchCacheDir, fmt.Sprintf("plain_%d_mdbx.db", size))

	if env, ok := sdbxEnvs[key]; ok {
		return env, sdbxDBs[key], mdbxEnvs[key], sampleCache[key]
	}

	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}

	sdbxExists := fileExists(sdbxPath)
	mdbxExists := fileExists(mdbxPath)

	env, err := sdbx.Open(sdbxPath, &sdbx.EnvOptions{
		Flags:    sdbx.NoSubdir | sdbx.NoMetaSync | sdbx.WriteMap,
		MaxDBs:   10,
		Geometry: &sdbx.Geometry{SizeUpper: 1 << 32, PageSize: 4096},
		Label:    "bench",
	})
	if err != nil {
		b.Fatal(err)
	}

	runtime.LockOSThread()
	menv, err := mdbxgo.NewEnv(mdbxgo.Label("bench"))
	if err != nil {
		env.Close()
		b.Fatal(err)
	}
	menv.SetOption(mdbxgo.OptMaxDB, 10)
	menv.SetGeometry(-1, -1, 1<<32, -1, -1, 4096)
	if err := menv.Open(mdbxPath, mdbxgo.NoSubdir|mdbxgo.NoMetaSync|mdbxgo.WriteMap, 0644); err != nil {
		env.Close()
		b.Fatal(err)
	}
	runtime.UnlockOSThread()

	if !sdbxExists {
		b.Logf("Creating cached sdbx plain DB with %d keys...", size)
	}
	db := populatePlainSdbx(b, env, size, !sdbxExists)

	if !mdbxExists {
		b.Logf("Creating cached mdbx plain DB with %d keys...", size)
		populatePlainMdbx(b, menv, size)
	}

	samples := collectSampleKeys(b, env, db, size)

	sdbxEnvs[key] = env
	sdbxDBs[key] = db
	mdbxEnvs[key] = menv
	sampleCache[key] = samples

	return env, db, menv, samples
}

// getCachedDupSortDB returns cached sorted-duplicates databases for the
// handle layer and the raw engine.
func getCachedDupSortDB(b *testing.B, numKeys, valsPerKey int) (*sdbx.Env, *sdbx.Database, *mdbxgo.Env) {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	total := numKeys * valsPerKey
	key := fmt.Sprintf("dupsort_%d", total)
	sdbxPath := filepath.Join(benchCacheDir, fmt.Sprintf("dupsort_%d_sdbx.db", total))
	mdbxPath := filepath.Join(benchCacheDir, fmt.Sprintf("dupsort_%d_mdbx.db", total))

	if env, ok := sdbxEnvs[key]; ok {
		return env, sdbxDBs[key], mdbxEnvs[key]
	}

	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}

	sdbxExists := fileExists(sdbxPath)
	mdbxExists := fileExists(mdbxPath)

	env, err := sdbx.Open(sdbxPath, &sdbx.EnvOptions{
		Flags:    sdbx.NoSubdir | sdbx.NoMetaSync | sdbx.WriteMap,
		MaxDBs:   10,
		Geometry: &sdbx.Geometry{SizeUpper: 1 << 32, PageSize: 4096},
		Label:    "bench",
	})
	if err != nil {
		b.Fatal(err)
	}

	runtime.LockOSThread()
	menv, err := mdbxgo.NewEnv(mdbxgo.Label("bench"))
	if err != nil {
		env.Close()
		b.Fatal(err)
	}
	menv.SetOption(mdbxgo.OptMaxDB, 10)
	menv.SetGeometry(-1, -1, 1<<32, -1, -1, 4096)
	if err := menv.Open(mdbxPath, mdbxgo.NoSubdir|mdbxgo.NoMetaSync|mdbxgo.WriteMap, 0644); err != nil {
		env.Close()
		b.Fatal(err)
	}
	runtime.UnlockOSThread()

	if !sdbxExists {
		b.Logf("Creating cached sdbx dupsort DB with %d keys x %d vals...", numKeys, valsPerKey)
	}
	db := populateDupSortSdbx(b, env, numKeys, valsPerKey, !sdbxExists)

	if !mdbxExists {
		b.Logf("Creating cached mdbx dupsort DB with %d keys x %d vals...", numKeys, valsPerKey)
		populateDupSortMdbx(b, menv, numKeys, valsPerKey)
	}

	sdbxEnvs[key] = env
	sdbxDBs[key] = db
	mdbxEnvs[key] = menv

	return env, db, menv
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// populatePlainSdbx opens the bench table and fills it with sequential
// 8-byte keys when populate is set. Inserts commit in batches.
func populatePlainSdbx(b *testing.B, env *sdbx.Env, numKeys int, populate bool) *sdbx.Database {
	var db *sdbx.Database
	err := env.Update(func(txn *sdbx.Txn) error {
		var err error
		db, err = txn.OpenDBI("bench", sdbx.Create)
		return err
	})
	if err != nil {
		b.Fatal(err)
	}
	if !populate {
		return db
	}

	batchSize := 100_000
	key := make([]byte, 8)
	val := make([]byte, 32)

	for start := 0; start < numKeys; start += batchSize {
		end := start + batchSize
		if end > numKeys {
			end = numKeys
		}
		err := env.Update(func(txn *sdbx.Txn) error {
			for i := start; i < end; i++ {
				binary.BigEndian.PutUint64(key, uint64(i))
				binary.BigEndian.PutUint64(val, uint64(i))
				if err := db.Put(txn, key, val, sdbx.Upsert); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	return db
}

func populatePlainMdbx(b *testing.B, env *mdbxgo.Env, numKeys int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	dbi, err := txn.OpenDBI("bench", mdbxgo.Create, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	batchSize := 100_000
	key := make([]byte, 8)
	val := make([]byte, 32)

	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		binary.BigEndian.PutUint64(val, uint64(i))

		if err := txn.Put(dbi, key, val, mdbxgo.Upsert); err != nil {
			b.Fatal(err)
		}

		if (i+1)%batchSize == 0 {
			if _, err := txn.Commit(); err != nil {
				b.Fatal(err)
			}
			txn, err = env.BeginTxn(nil, 0)
			if err != nil {
				b.Fatal(err)
			}
		}
	}

	if _, err := txn.Commit(); err != nil {
		b.Fatal(err)
	}
}

func populateDupSortSdbx(b *testing.B, env *sdbx.Env, numKeys, valsPerKey int, populate bool) *sdbx.Database {
	var db *sdbx.Database
	err := env.Update(func(txn *sdbx.Txn) error {
		var err error
		db, err = txn.OpenDBI("dupbench", sdbx.Create|sdbx.DupSort)
		return err
	})
	if err != nil {
		b.Fatal(err)
	}
	if !populate {
		return db
	}

	batchSize := 100_000
	key := make([]byte, 8)
	val := make([]byte, 16)

	i := 0
	for i < numKeys {
		err := env.Update(func(txn *sdbx.Txn) error {
			puts := 0
			for ; i < numKeys; i++ {
				binary.BigEndian.PutUint64(key, uint64(i))
				for j := 0; j < valsPerKey; j++ {
					binary.BigEndian.PutUint64(val, uint64(j))
					if err := db.Put(txn, key, val, sdbx.Upsert); err != nil {
						return err
					}
				}
				puts += valsPerKey
				if puts >= batchSize {
					i++
					return nil
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
	return db
}

func populateDupSortMdbx(b *testing.B, env *mdbxgo.Env, numKeys, valsPerKey int) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	txn, err := env.BeginTxn(nil, 0)
	if err != nil {
		b.Fatal(err)
	}
	dbi, err := txn.OpenDBI("dupbench", mdbxgo.Create|mdbxgo.DupSort, nil, nil)
	if err != nil {
		b.Fatal(err)
	}

	batchSize := 100_000
	key := make([]byte, 8)
	val := make([]byte, 16)
	count := 0

	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		for j := 0; j < valsPerKey; j++ {
			binary.BigEndian.PutUint64(val, uint64(j))

			if err := txn.Put(dbi, key, val, mdbxgo.Upsert); err != nil {
				b.Fatal(err)
			}

			count++
			if count%batchSize == 0 {
				if _, err := txn.Commit(); err != nil {
					b.Fatal(err)
				}
				txn, err = env.BeginTxn(nil, 0)
				if err != nil {
					b.Fatal(err)
				}
			}
		}
	}

	if _, err := txn.Commit(); err != nil {
		b.Fatal(err)
	}
}

// collectSampleKeys walks the bench table and keeps every 1000th key
// for random-access benchmarks.
func collectSampleKeys(b *testing.B, env *sdbx.Env, db *sdbx.Database, numKeys int) [][]byte {
	samples := make([][]byte, 0, numKeys/1000+1)
	err := env.View(func(txn *sdbx.Txn) error {
		return db.RunCursor(txn, func(cur *sdbx.Cursor) error {
			i := 0
			for k, _, err := cur.First(); ; k, _, err = cur.Get(nil, nil, sdbx.NextNoDup) {
				if err != nil {
					if sdbx.IsNotFound(err) {
						return nil
					}
					return err
				}
				if i%1000 == 0 {
					samples = append(samples, append([]byte(nil), k...))
				}
				i++
			}
		})
	})
	if err != nil {
		b.Fatal(err)
	}
	return samples
}

// getCachedBoltDB returns a cached BoltDB database, creating it if needed.
func getCachedBoltDB(b *testing.B, size int) *bolt.DB {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("bolt_%d", size)
	boltPath := filepath.Join(benchCacheDir, fmt.Sprintf("plain_%d_bolt.db", size))

	if db, ok := boltDBs[key]; ok {
		return db
	}

	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}

	boltExists := fileExists(boltPath)

	db, err := bolt.Open(boltPath, 0644, &bolt.Options{
		NoSync:         true,
		NoFreelistSync: true,
	})
	if err != nil {
		b.Fatal(err)
	}

	if !boltExists {
		b.Logf("Creating cached BoltDB with %d keys...", size)
		populateBolt(b, db, size)
	}

	boltDBs[key] = db
	return db
}

func populateBolt(b *testing.B, db *bolt.DB, numKeys int) {
	batchSize := 100_000
	key := make([]byte, 8)
	val := make([]byte, 32)

	for start := 0; start < numKeys; start += batchSize {
		end := start + batchSize
		if end > numKeys {
			end = numKeys
		}
		err := db.Update(func(tx *bolt.Tx) error {
			bucket, err := tx.CreateBucketIfNotExists([]byte("bench"))
			if err != nil {
				return err
			}
			for i := start; i < end; i++ {
				binary.BigEndian.PutUint64(key, uint64(i))
				binary.BigEndian.PutUint64(val, uint64(i))
				if err := bucket.Put(key, val); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			b.Fatal(err)
		}
	}
}

// getCachedRocksDB returns a cached RocksDB database, creating it if needed.
func getCachedRocksDB(b *testing.B, size int) *gorocksdb.DB {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	key := fmt.Sprintf("rocks_%d", size)
	rocksPath := filepath.Join(benchCacheDir, fmt.Sprintf("plain_%d_rocks.db", size))

	if db, ok := rocksDBs[key]; ok {
		return db
	}

	if err := os.MkdirAll(benchCacheDir, 0755); err != nil {
		b.Fatal(err)
	}

	rocksExists := fileExists(rocksPath)

	opts := gorocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	opts.SetWriteBufferSize(64 * 1024 * 1024)
	opts.SetMaxWriteBufferNumber(3)
	opts.SetTargetFileSizeBase(64 * 1024 * 1024)

	db, err := gorocksdb.OpenDb(opts, rocksPath)
	if err != nil {
		b.Fatal(err)
	}

	if !rocksExists {
		b.Logf("Creating cached RocksDB with %d keys...", size)
		populateRocks(b, db, size)
	}

	rocksDBs[key] = db
	return db
}

func populateRocks(b *testing.B, db *gorocksdb.DB, numKeys int) {
	wo := gorocksdb.NewDefaultWriteOptions()
	defer wo.Destroy()

	key := make([]byte, 8)
	val := make([]byte, 32)

	batch := gorocksdb.NewWriteBatch()
	defer batch.Destroy()

	batchSize := 100_000

	for i := 0; i < numKeys; i++ {
		binary.BigEndian.PutUint64(key, uint64(i))
		binary.BigEndian.PutUint64(val, uint64(i))

		batch.Put(key, val)

		if (i+1)%batchSize == 0 {
			if err := db.Write(wo, batch); err != nil {
				b.Fatal(err)
			}
			batch.Clear()
		}
	}

	if batch.Count() > 0 {
		if err := db.Write(wo, batch); err != nil {
			b.Fatal(err)
		}
	}
}

// CleanupBenchCache closes all cached environments.
// Call this in TestMain or after benchmarks complete.
func CleanupBenchCache() {
	cacheMu.Lock()
	defer cacheMu.Unlock()

	for _, db := range sdbxDBs {
		db.Close()
	}
	for _, env := range sdbxEnvs {
		env.Close()
	}
	for _, env := range mdbxEnvs {
		env.Close()
	}
	for _, db := range boltDBs {
		db.Close()
	}
	for _, db := range rocksDBs {
		db.Close()
	}
	sdbxEnvs = make(map[string]*sdbx.Env)
	sdbxDBs = make(map[string]*sdbx.Database)
	mdbxEnvs = make(map[string]*mdbxgo.Env)
	boltDBs = make(map[string]*bolt.DB)
	rocksDBs = make(map[string]*gorocksdb.DB)
	sampleCache = make(map[string][][]byte)
}

// DeleteBenchCache removes all cached database files.
func DeleteBenchCache() error {
	return os.RemoveAll(benchCacheDir)
}
