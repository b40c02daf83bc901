// Package repairclass classifies repair records into service categories
// using artifacts produced by the repairclass CLI (encoders, vocabulary and
// model weights).
//
// Quick start:
//
//	c, err := repairclass.New(repairclass.WithModelDir("artifacts/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Close()
//
//	res, _ := c.Classify(repairclass.Record{
//	    Symptom:  "Не включается",
//	    Fault:    "Замена основной платы",
//	    Partcode: "506",
//	})
//	fmt.Println(res.Category, res.Confidence)
//
// A Classifier is safe for concurrent use. Create once, reuse across
// requests.
package repairclass
