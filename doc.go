// Package vegamdb is an embeddable vector database: fixed-dimension float32
// vectors with k-nearest-neighbor search under squared Euclidean distance.
//
// A DB starts with an exact brute-force index. UseIVFIndex and UseAnnoyIndex
// select approximate strategies that trade recall for speed; BuildIndex
// trains the selected strategy over the current vectors. Save and Load
// round-trip the store together with the active index in a single binary
// file.
//
//	db := vegamdb.New()
//	db.AddVector([]float32{1, 0, 0})
//	db.UseIVFIndex(10, 50, 2)
//	db.BuildIndex()
//	res, err := db.Search(query, 5)
package vegamdb
