// Package files discovers fact files on disk.
//
// A data directory holds one file per feed, named after the feed:
//
//	data/
//	  sharadar_fundamentals.csv
//	  ibkr_shortable_shares.xlsx
//
// Example usage:
//
//	discovery := files.NewDiscovery("/srv/pitalign")
//	feeds, err := discovery.FindFeedFiles("data")
//	if err != nil {
//	    return err
//	}
//	for feed, file := range feeds {
//	    fmt.Println(feed, file.Path)
//	}
package files
