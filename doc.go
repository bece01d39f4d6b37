// Package sdbx is a safe handle layer over MDBX, a high-performance
// embedded transactional key-value database.
//
// The engine treats any call on an ended handle as undefined behavior.
// sdbx makes that impossible to trigger: every environment, transaction,
// database and cursor handle tracks its own lifecycle, validates the
// whole ancestor chain before each engine call, and fails closed-handle
// use with a typed error instead of reaching the engine.
//
// Key properties:
//   - Ending a transaction renders its nested transactions, databases
//     and cursors inert without cascading notifications; each handle
//     checks its ancestor chain on use
//   - The native environment is reference-counted and released only
//     after the last handle opened under it is gone
//   - Scoped forms (View, Update, Sub, RunCursor, RunEnv) guarantee
//     commit-or-abort and close on every exit path
//   - Engine status codes surface as typed errors; lifecycle violations
//     never reach the engine at all
//
// Basic usage:
//
//	env, err := sdbx.Open("/path/to/db", nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer env.Close()
//
//	var db *sdbx.Database
//	err = env.Update(func(txn *sdbx.Txn) error {
//	    var err error
//	    db, err = txn.OpenDBI("words", sdbx.Create)
//	    if err != nil {
//	        return err
//	    }
//	    return db.Put(txn, []byte("key"), []byte("value"), 0)
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = env.View(func(txn *sdbx.Txn) error {
//	    v, err := db.Get(txn, []byte("key"))
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Printf("%s\n", v)
//	    return nil
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
package sdbx
